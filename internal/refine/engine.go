// Package refine drives content through iterative create-critique-revise
// cycles until it meets a quality threshold or exhausts its cycle budget.
// The engine is stateless and safe for concurrent use; callers supply the
// creator and critic pair per run.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
)

var (
	// Configuration validation errors.
	errThresholdOutOfRange = errors.New("quality threshold must be within the critique score range")
	errMaxCyclesNegative   = errors.New("max cycles must be >= 0")

	// Runtime errors.
	errNilCreator       = errors.New("creator must not be nil")
	errNilCritic        = errors.New("critic must not be nil")
	errMissingTaskID    = errors.New("assignment task id is required")
	errMissingScope     = errors.New("assignment scope is required")
	errMissingBrief     = errors.New("assignment brief is required")
	errRunCancelled     = errors.New("refinement cancelled")
	errUnexpectedCycles = errors.New("unexpected cycle loop exit")
)

// Assignment describes one piece of content a run must produce: the brief
// given to the creator plus correlation identity for logs and observers.
type Assignment struct {
	// TaskID correlates the run with its originating request.
	TaskID string

	// Scope distinguishes runs within a task, such as "unit-2" or "polish-1".
	Scope string

	// Brief is the instruction the creator works from.
	Brief string

	// Context carries named auxiliary inputs such as style or era notes.
	Context map[string]string
}

// Validate checks the assignment carries everything a run needs.
func (a Assignment) Validate() error {
	if a.TaskID == "" {
		return errMissingTaskID
	}
	if a.Scope == "" {
		return errMissingScope
	}
	if strings.TrimSpace(a.Brief) == "" {
		return errMissingBrief
	}
	return nil
}

// Creator produces candidate content for an assignment. On every cycle after
// the first it receives the previous critique's issues as feedback; feedback
// is nil on the opening cycle.
type Creator interface {
	Create(ctx context.Context, assignment Assignment, feedback domain.Feedback) (domain.GenerationResult, error)
}

// Critic scores candidate content and reports its issues. Implementations
// must return scores inside the domain critique range; the engine compares
// them against the threshold without clamping.
type Critic interface {
	Critique(ctx context.Context, content domain.ContentUnit) (domain.CritiqueReport, error)
}

// CycleObserver receives one callback per completed critique cycle with the
// 0-based cycle index, the critic's score, and the issues that would carry
// forward. The engine calls it inline, so observers must be fast.
type CycleObserver func(cycle int, score float64, feedback domain.Feedback)

// Config holds the quality policy for engine runs.
type Config struct {
	// QualityThreshold is the minimum acceptable critique score. A score
	// meeting the threshold exactly is accepted.
	QualityThreshold float64

	// MaxCycles is the number of revision cycles permitted after the initial
	// attempt. Zero means a single attempt whose content is returned
	// regardless of score.
	MaxCycles int
}

// DefaultConfig returns the standard quality policy: threshold 8.0 with two
// revision cycles after the initial attempt.
func DefaultConfig() Config {
	return Config{QualityThreshold: 8.0, MaxCycles: 2}
}

// Engine runs refinement loops against a fixed quality policy. A single
// engine serves any number of concurrent runs; all per-run state lives on
// the stack of Run.
type Engine struct {
	cfg      Config
	observer CycleObserver
	logger   *slog.Logger
}

// NewEngine creates a refinement engine for the given policy. The observer
// may be nil when no per-cycle reporting is needed; a nil logger falls back
// to slog.Default.
func NewEngine(cfg Config, observer CycleObserver, logger *slog.Logger) (*Engine, error) {
	if cfg.QualityThreshold < domain.MinScore || cfg.QualityThreshold > domain.MaxScore {
		return nil, fmt.Errorf("%w, got %g", errThresholdOutOfRange, cfg.QualityThreshold)
	}
	if cfg.MaxCycles < 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxCyclesNegative, cfg.MaxCycles)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		observer: observer,
		logger:   logger.With("component", "refine"),
	}, nil
}

// Run iterates create-critique cycles until the critic's score meets the
// threshold or the cycle budget runs out. The outcome always carries the
// last critiqued content: the first cycle to meet the threshold, or the
// final cycle's content when the budget is spent below it (ThresholdMet
// false). Unusable creator output aborts the run with a
// domain.GenerationError before the critic is consulted.
func (e *Engine) Run(ctx context.Context, assignment Assignment, creator Creator, critic Critic) (domain.RefinementOutcome, error) {
	if creator == nil {
		return domain.RefinementOutcome{}, errNilCreator
	}
	if critic == nil {
		return domain.RefinementOutcome{}, errNilCritic
	}
	if err := assignment.Validate(); err != nil {
		return domain.RefinementOutcome{}, err
	}

	log := e.logger.With("task_id", assignment.TaskID, "scope", assignment.Scope)

	var feedback domain.Feedback
	for cycle := 0; cycle <= e.cfg.MaxCycles; cycle++ {
		select {
		case <-ctx.Done():
			return domain.RefinementOutcome{}, fmt.Errorf("%w before cycle %d: %w", errRunCancelled, cycle, ctx.Err())
		default:
		}

		result, err := creator.Create(ctx, assignment, feedback)
		if err != nil {
			return domain.RefinementOutcome{}, domain.NewGenerationError(
				fmt.Sprintf("creator failed on cycle %d", cycle), err)
		}
		if result.Content.IsEmpty() {
			return domain.RefinementOutcome{}, domain.NewGenerationError(
				fmt.Sprintf("empty content on cycle %d", cycle), nil)
		}

		report, err := critic.Critique(ctx, result.Content)
		if err != nil {
			return domain.RefinementOutcome{}, fmt.Errorf("critic failed on cycle %d: %w", cycle, err)
		}

		score := report.OverallScore
		feedback = domain.Feedback(report.Issues)
		if e.observer != nil {
			e.observer(cycle, score, feedback)
		}
		log.Debug("refinement cycle scored",
			"cycle", cycle, "score", score, "issues", len(report.Issues))

		if score >= e.cfg.QualityThreshold {
			log.Info("quality threshold met",
				"cycle", cycle, "score", score, "threshold", e.cfg.QualityThreshold)
			return domain.RefinementOutcome{
				FinalContent:  result.Content,
				FinalScore:    score,
				FinalCritique: report,
				CyclesUsed:    cycle + 1,
				ThresholdMet:  true,
			}, nil
		}
		if cycle == e.cfg.MaxCycles {
			log.Info("cycle budget exhausted below threshold",
				"cycles_used", cycle+1, "score", score, "threshold", e.cfg.QualityThreshold)
			return domain.RefinementOutcome{
				FinalContent:  result.Content,
				FinalScore:    score,
				FinalCritique: report,
				CyclesUsed:    cycle + 1,
				ThresholdMet:  false,
			}, nil
		}
	}

	return domain.RefinementOutcome{}, errUnexpectedCycles
}
