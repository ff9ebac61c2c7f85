package model

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ClassMetrics holds per-class classification metrics.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Confusion is the two-class confusion matrix with fraud as positive.
type Confusion struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// Evaluation is the held-out test evaluation of a trained model.
type Evaluation struct {
	Legit            ClassMetrics           `json:"legit"`
	Fraud            ClassMetrics           `json:"fraud"`
	Accuracy         float64                `json:"accuracy"`
	ROCAUC           float64                `json:"rocAuc"`
	AveragePrecision float64                `json:"averagePrecision"`
	Confusion        Confusion              `json:"confusion"`
	Importances      []domain.FeatureWeight `json:"importances,omitempty"`
}

// Evaluate computes classification metrics from true labels, predicted
// labels, and fraud probabilities.
func Evaluate(yTrue, yPred []int, pFraud []float64) (*Evaluation, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) || len(yTrue) != len(pFraud) {
		return nil, fmt.Errorf("evaluation inputs must be non-empty and equal length")
	}

	var cm Confusion
	for i := range yTrue {
		switch {
		case yTrue[i] == 0 && yPred[i] == 0:
			cm.TN++
		case yTrue[i] == 0 && yPred[i] == 1:
			cm.FP++
		case yTrue[i] == 1 && yPred[i] == 0:
			cm.FN++
		default:
			cm.TP++
		}
	}

	eval := &Evaluation{
		Confusion: cm,
		Accuracy:  float64(cm.TN+cm.TP) / float64(len(yTrue)),
		// Legitimate class treats 0 as positive.
		Legit: classMetrics(cm.TN, cm.FN, cm.FP, cm.TN+cm.FP),
		Fraud: classMetrics(cm.TP, cm.FP, cm.FN, cm.TP+cm.FN),
	}

	eval.ROCAUC = rocAUC(pFraud, yTrue)
	eval.AveragePrecision = averagePrecision(pFraud, yTrue)
	return eval, nil
}

func classMetrics(tp, fp, fn, support int) ClassMetrics {
	m := ClassMetrics{Support: support}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// rocAUC computes the area under the ROC curve with fraud as the positive
// class, via gonum's ROC over scores sorted ascending.
func rocAUC(pFraud []float64, yTrue []int) float64 {
	scores := append([]float64(nil), pFraud...)
	classes := make([]bool, len(yTrue))
	for i, label := range yTrue {
		classes[i] = label == 1
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return scores[idx[i]] < scores[idx[j]]
	})

	sortedScores := make([]float64, len(scores))
	sortedClasses := make([]bool, len(classes))
	for i, j := range idx {
		sortedScores[i] = scores[j]
		sortedClasses[i] = classes[j]
	}

	tpr, fpr, _ := stat.ROC(nil, sortedScores, sortedClasses, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// averagePrecision computes the average precision score: precision averaged
// over the positives, swept in descending score order.
func averagePrecision(pFraud []float64, yTrue []int) float64 {
	idx := make([]int, len(pFraud))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return pFraud[idx[i]] > pFraud[idx[j]]
	})

	var positives int
	for _, label := range yTrue {
		if label == 1 {
			positives++
		}
	}
	if positives == 0 {
		return 0
	}

	var tp, fp int
	var ap float64
	for _, j := range idx {
		if yTrue[j] == 1 {
			tp++
			ap += float64(tp) / float64(tp+fp) / float64(positives)
		} else {
			fp++
		}
	}
	return ap
}

// Report renders the evaluation as a human-readable summary.
func (e *Evaluation) Report() string {
	var b strings.Builder

	line := strings.Repeat("=", 55)
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "  CARD FRAUD SCORING - MODEL EVALUATION\n")
	fmt.Fprintf(&b, "%s\n\n", line)

	fmt.Fprintf(&b, "%-12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	fmt.Fprintf(&b, "%-12s %10.4f %10.4f %10.4f %10d\n", "Legitimate", e.Legit.Precision, e.Legit.Recall, e.Legit.F1, e.Legit.Support)
	fmt.Fprintf(&b, "%-12s %10.4f %10.4f %10.4f %10d\n\n", "Fraud", e.Fraud.Precision, e.Fraud.Recall, e.Fraud.F1, e.Fraud.Support)

	fmt.Fprintf(&b, "Accuracy           : %.4f\n", e.Accuracy)
	fmt.Fprintf(&b, "ROC-AUC Score      : %.4f\n", e.ROCAUC)
	fmt.Fprintf(&b, "Avg Precision Score: %.4f\n\n", e.AveragePrecision)

	fmt.Fprintf(&b, "Confusion Matrix:\n")
	fmt.Fprintf(&b, "  TN=%6d  FP=%6d\n", e.Confusion.TN, e.Confusion.FP)
	fmt.Fprintf(&b, "  FN=%6d  TP=%6d\n", e.Confusion.FN, e.Confusion.TP)

	if len(e.Importances) > 0 {
		n := len(e.Importances)
		if n > 10 {
			n = 10
		}
		fmt.Fprintf(&b, "\nTop %d Feature Importances:\n", n)
		for _, fw := range e.Importances[:n] {
			fmt.Fprintf(&b, "  %-24s %.4f\n", fw.Name, fw.Weight)
		}
	}

	return b.String()
}
