// Package guard provides the CEL-based input-guard engine.
//
// Guards are sanity bounds on the raw score-request fields (negative
// amounts, impossible hours, flags outside {0,1}). The scoring pipeline
// itself performs no domain validation, so these bounds live here at the
// collaborator boundary: a triggered guard attaches a warning to the score
// response and never changes the probabilities or the decision.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine compiles and evaluates guard expressions.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledGuards map[string]*CompiledGuard
	maxWorkers     int
}

// CompiledGuard holds a pre-compiled CEL program.
type CompiledGuard struct {
	Config  *domain.GuardConfig
	Program cel.Program
}

// NewEngine creates a guard engine whose CEL environment exposes each raw
// field as a double variable plus the whole record as a map.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	opts := []cel.EnvOption{
		cel.Variable("record", cel.MapType(cel.StringType, cel.DoubleType)),
	}
	for _, name := range domain.RawFields {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledGuards: make(map[string]*CompiledGuard),
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateGuard compiles a guard without mutating the loaded set.
func (e *Engine) ValidateGuard(cfg *domain.GuardConfig) error {
	if cfg == nil {
		return fmt.Errorf("guard config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileGuard(cfg)
	return err
}

// LoadGuard compiles and loads a guard into the engine.
func (e *Engine) LoadGuard(cfg *domain.GuardConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileGuard(cfg)
	if err != nil {
		return err
	}

	e.compiledGuards[cfg.ID] = compiled
	return nil
}

// LoadGuards compiles and loads multiple guards.
func (e *Engine) LoadGuards(configs []*domain.GuardConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadGuard(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateAll evaluates every loaded guard against a record in parallel and
// returns the results of the guards that triggered or errored.
func (e *Engine) EvaluateAll(ctx context.Context, record *domain.Record) []domain.GuardResult {
	e.mu.RLock()
	guards := make([]*CompiledGuard, 0, len(e.compiledGuards))
	for _, g := range e.compiledGuards {
		guards = append(guards, g)
	}
	e.mu.RUnlock()

	if len(guards) == 0 {
		return nil
	}

	fields := record.Fields()
	activation := map[string]any{"record": fields}
	for name, v := range fields {
		activation[name] = v
	}

	results := make([]domain.GuardResult, len(guards))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, g := range guards {
		wg.Add(1)
		go func(idx int, g *CompiledGuard) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateGuard(g, activation)
		}(i, g)
	}

	wg.Wait()

	fired := make([]domain.GuardResult, 0, len(results))
	for _, res := range results {
		if res.Triggered || res.Err != "" {
			fired = append(fired, res)
		}
	}
	return fired
}

func (e *Engine) evaluateGuard(g *CompiledGuard, activation map[string]any) domain.GuardResult {
	result := domain.GuardResult{
		GuardID:  g.Config.ID,
		Name:     g.Config.Name,
		Severity: g.Config.Severity,
		Reason:   g.Config.Reason,
	}

	out, _, err := g.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Triggered = toBool(out)
	return result
}

// toBool converts a CEL value to a triggered flag. Numeric results trigger
// when non-zero.
func toBool(val ref.Val) bool {
	switch v := val.(type) {
	case types.Bool:
		return bool(v)
	case types.Double:
		return float64(v) != 0
	case types.Int:
		return int64(v) != 0
	default:
		return false
	}
}

// GuardsCount returns the number of loaded guards.
func (e *Engine) GuardsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledGuards)
}

// ReloadGuards clears all existing guards and loads new ones.
// This enables hot-reloading from the database.
func (e *Engine) ReloadGuards(configs []*domain.GuardConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newGuards := make(map[string]*CompiledGuard)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileGuard(cfg)
		if err != nil {
			return err
		}
		newGuards[cfg.ID] = compiled
	}

	e.compiledGuards = newGuards
	return nil
}

// GetLoadedGuards returns the currently loaded guard configurations.
func (e *Engine) GetLoadedGuards() []*domain.GuardConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	guards := make([]*domain.GuardConfig, 0, len(e.compiledGuards))
	for _, compiled := range e.compiledGuards {
		guards = append(guards, compiled.Config)
	}
	return guards
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledGuards = make(map[string]*CompiledGuard)
	return nil
}

func (e *Engine) compileGuard(cfg *domain.GuardConfig) (*CompiledGuard, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile guard %s: %w", cfg.ID, issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build guard program %s: %w", cfg.ID, err)
	}

	return &CompiledGuard{Config: cfg, Program: program}, nil
}
