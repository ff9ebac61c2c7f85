//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel scoring API.
//
// These tests exercise the complete request path against a RUNNING server:
//
//	Record → Guards → Features → Scaler → Forest → Tier → Audit trail
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must be started with trained artifacts first:
//
//	go run ./cmd/train -out ./artifacts
//	KESTREL_ARTIFACTS=./artifacts go run ./cmd/kestrel
//
// Set KESTREL_TEST_URL to point at a non-default server address.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ScoreResponse is what POST /score returns.
type ScoreResponse struct {
	ID       string  `json:"id"`
	TenantID string  `json:"tenantId"`
	PFraud   float64 `json:"pFraud"`
	PLegit   float64 `json:"pLegit"`
	Fraud    bool    `json:"fraud"`
	Tier     string  `json:"riskTier"`
	Warnings []struct {
		GuardID  string `json:"guardId"`
		Severity string `json:"severity"`
		Reason   string `json:"reason"`
	} `json:"warnings"`
	Metadata struct {
		TraceID      string `json:"traceId"`
		ScoreMs      int64  `json:"scoreMs"`
		TotalMs      int64  `json:"totalMs"`
		CacheHit     bool   `json:"cacheHit"`
		ModelVersion string `json:"modelVersion"`
	} `json:"metadata"`
}

func legitimateFields() map[string]float64 {
	return map[string]float64{
		"amount":                45,
		"hour_of_day":           14,
		"day_of_week":           2,
		"merchant_category":     3,
		"num_transactions_1h":   1,
		"num_transactions_24h":  4,
		"avg_amount_30d":        50,
		"distance_from_home":    5,
		"is_online":             0,
		"is_international":      0,
		"card_present":          1,
		"days_since_last_txn":   2,
		"credit_limit_used_pct": 0.2,
		"velocity_score":        0.1,
		"geo_risk_score":        0.05,
	}
}

func suspiciousFields() map[string]float64 {
	return map[string]float64{
		"amount":                2400,
		"hour_of_day":           3,
		"day_of_week":           6,
		"merchant_category":     7,
		"num_transactions_1h":   6,
		"num_transactions_24h":  15,
		"avg_amount_30d":        40,
		"distance_from_home":    800,
		"is_online":             1,
		"is_international":      1,
		"card_present":          0,
		"days_since_last_txn":   0.1,
		"credit_limit_used_pct": 0.95,
		"velocity_score":        0.9,
		"geo_risk_score":        0.85,
	}
}

func score(t *testing.T, config TestConfig, fields map[string]float64) ScoreResponse {
	t.Helper()

	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result ScoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func TestLegitimateRecord_LowRisk(t *testing.T) {
	config := getTestConfig()

	result := score(t, config, legitimateFields())

	if result.Fraud {
		t.Errorf("Expected legitimate record to pass, got fraud with P(fraud)=%.4f", result.PFraud)
	}
	if result.PFraud > 0.5 {
		t.Errorf("Expected P(fraud) <= 0.5, got %.4f", result.PFraud)
	}
	if len(result.Warnings) > 0 {
		t.Errorf("Clean record should not trigger guards: %+v", result.Warnings)
	}
	if result.ID == "" {
		t.Error("Response should carry a score ID")
	}
	if result.Metadata.ModelVersion == "" {
		t.Error("Response should carry the model version")
	}
}

func TestSuspiciousRecord_HighRisk(t *testing.T) {
	config := getTestConfig()

	result := score(t, config, suspiciousFields())

	if !result.Fraud {
		t.Errorf("Expected suspicious record to be flagged, got P(fraud)=%.4f", result.PFraud)
	}
	if result.Tier != "HIGH" && result.Tier != "CRITICAL" {
		t.Errorf("Expected HIGH or CRITICAL tier, got %s", result.Tier)
	}
}

func TestGuardWarning_NegativeAmount(t *testing.T) {
	config := getTestConfig()

	fields := legitimateFields()
	fields["amount"] = -10

	result := score(t, config, fields)

	found := false
	for _, w := range result.Warnings {
		if w.GuardID == "negative-amount" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected negative-amount warning, got %+v", result.Warnings)
	}
}

func TestRepeatedRecord_CacheHit(t *testing.T) {
	config := getTestConfig()

	fields := legitimateFields()
	// Unique amount so earlier runs cannot have primed the cache.
	fields["amount"] = float64(time.Now().UnixNano()%100000) / 100

	first := score(t, config, fields)
	second := score(t, config, fields)

	if !second.Metadata.CacheHit {
		t.Error("Second identical request should be served from cache")
	}
	if second.PFraud != first.PFraud {
		t.Errorf("Cached probability differs: %.6f vs %.6f", second.PFraud, first.PFraud)
	}
}

func TestScoreAuditTrail(t *testing.T) {
	config := getTestConfig()

	fields := legitimateFields()
	fields["amount"] = float64(time.Now().UnixNano()%100000)/100 + 1

	posted := score(t, config, fields)

	// The synchronous write path persists before responding; the async
	// worker needs a moment.
	var resp *http.Response
	var err error
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		req, reqErr := http.NewRequest("GET", config.BaseURL+"/scores/"+posted.ID, nil)
		if reqErr != nil {
			t.Fatalf("Failed to create request: %v", reqErr)
		}
		req.Header.Set("X-Tenant-ID", config.TenantID)

		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			break
		}
		resp.Body.Close()
		time.Sleep(100 * time.Millisecond)
	}

	if resp == nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("Score %s never appeared in the audit trail", posted.ID)
	}
	defer resp.Body.Close()

	var stored ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to decode stored score: %v", err)
	}
	if stored.PFraud != posted.PFraud {
		t.Errorf("Stored probability %.6f differs from response %.6f", stored.PFraud, posted.PFraud)
	}
}

func TestModelIntrospection(t *testing.T) {
	config := getTestConfig()

	req, err := http.NewRequest("GET", config.BaseURL+"/model", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("X-Tenant-ID", config.TenantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var info struct {
		ModelVersion string             `json:"modelVersion"`
		Features     []string           `json:"features"`
		Importances  []map[string]any   `json:"importances"`
		Thresholds   map[string]float64 `json:"thresholds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode model info: %v", err)
	}

	if len(info.Features) != 18 {
		t.Errorf("Expected 18 features, got %d", len(info.Features))
	}
	if info.Thresholds["decision"] != 0.5 {
		t.Errorf("Expected decision threshold 0.5, got %v", info.Thresholds["decision"])
	}
}

func TestMissingField_Rejected(t *testing.T) {
	config := getTestConfig()

	fields := legitimateFields()
	delete(fields, "geo_risk_score")

	body, _ := json.Marshal(fields)
	req, err := http.NewRequest("POST", config.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", config.TenantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 400, got %d: %s", resp.StatusCode, body)
	}

	var errResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if errResp["field"] != "geo_risk_score" {
		t.Errorf("Expected missing field geo_risk_score, got %q", errResp["field"])
	}
}

func TestHealth(t *testing.T) {
	config := getTestConfig()

	resp, err := http.Get(fmt.Sprintf("%s/health", config.BaseURL))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("Expected healthy, got %s", health["status"])
	}
}
