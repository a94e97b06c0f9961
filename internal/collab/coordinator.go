// Package collab runs fixed-length collaborative exchanges between a lead
// agent and a partner agent. Unlike refinement, collaboration is never
// threshold-driven: every exchange in the budget runs, and both outputs are
// updated every cycle.
package collab

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
	errExchangeCountInvalid = errors.New("exchange count must be >= 1")

	// Runtime errors.
	errNilLead       = errors.New("lead must not be nil")
	errNilPartner    = errors.New("partner must not be nil")
	errMissingTaskID = errors.New("assignment task id is required")
	errMissingBrief  = errors.New("assignment brief is required")
	errRunCancelled  = errors.New("collaboration cancelled")
)

// Assignment describes the shared task both participants work on.
type Assignment struct {
	// TaskID correlates the run with its originating request.
	TaskID string

	// Brief is the shared instruction both participants work from.
	Brief string

	// Context carries named auxiliary inputs such as analysis summaries.
	Context map[string]string
}

// Validate checks the assignment carries everything a run needs.
func (a Assignment) Validate() error {
	if a.TaskID == "" {
		return errMissingTaskID
	}
	if strings.TrimSpace(a.Brief) == "" {
		return errMissingBrief
	}
	return nil
}

// Lead is the agent that opens the collaboration and steers it: it drafts
// first, reviews the partner's output each exchange, and folds the partner's
// revisions back into its own output.
type Lead interface {
	// Name identifies the participant in records and errors.
	Name() string

	// Draft produces the lead's opening output.
	Draft(ctx context.Context, assignment Assignment) (string, error)

	// Review critiques the partner's current output against the lead's own.
	Review(ctx context.Context, own, partner string) (domain.Feedback, error)

	// Incorporate folds the partner's revised output into the lead's own,
	// returning the lead's next output.
	Incorporate(ctx context.Context, own, partnerRevised string) (string, error)
}

// Partner is the agent that builds on the lead's output: its draft consumes
// the lead draft structurally, and it revises on every piece of feedback.
type Partner interface {
	// Name identifies the participant in records and errors.
	Name() string

	// Draft produces the partner's opening output from the lead's draft.
	Draft(ctx context.Context, assignment Assignment, leadDraft string) (string, error)

	// Revise applies the lead's feedback to the partner's current output.
	Revise(ctx context.Context, own string, feedback domain.Feedback) (string, error)
}

// ExchangeObserver receives one callback per completed exchange with the
// 0-based exchange index and the feedback the lead raised. Called inline.
type ExchangeObserver func(exchange int, feedback domain.Feedback)

// Config holds the collaboration budget.
type Config struct {
	// ExchangeCount is the fixed number of review-revise-incorporate rounds
	// after the opening drafts. Every round runs; there is no early exit.
	ExchangeCount int
}

// DefaultConfig returns the standard budget of two exchanges.
func DefaultConfig() Config {
	return Config{ExchangeCount: 2}
}

// Coordinator drives lead-partner collaborations. Stateless; one coordinator
// serves any number of concurrent runs.
type Coordinator struct {
	cfg      Config
	observer ExchangeObserver
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator for the given budget. The observer
// may be nil; a nil logger falls back to slog.Default.
func NewCoordinator(cfg Config, observer ExchangeObserver, logger *slog.Logger) (*Coordinator, error) {
	if cfg.ExchangeCount < 1 {
		return nil, fmt.Errorf("%w, got %d", errExchangeCountInvalid, cfg.ExchangeCount)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		observer: observer,
		logger:   logger.With("component", "collab"),
	}, nil
}

// Run executes the full exchange budget: both participants draft, then each
// exchange has the lead review the partner's output, the partner revise on
// that feedback, and the lead incorporate the revision. Either participant
// failing aborts the run with a domain.CollaborationError naming them; there
// is no partial recovery. The returned record holds every exchange's
// feedback and revision in order.
func (c *Coordinator) Run(ctx context.Context, assignment Assignment, lead Lead, partner Partner) (domain.CollaborationRecord, error) {
	if lead == nil {
		return domain.CollaborationRecord{}, errNilLead
	}
	if partner == nil {
		return domain.CollaborationRecord{}, errNilPartner
	}
	if err := assignment.Validate(); err != nil {
		return domain.CollaborationRecord{}, err
	}

	select {
	case <-ctx.Done():
		return domain.CollaborationRecord{}, fmt.Errorf("%w before drafting: %w", errRunCancelled, ctx.Err())
	default:
	}

	log := c.logger.With("task_id", assignment.TaskID, "lead", lead.Name(), "partner", partner.Name())

	leadOut, err := lead.Draft(ctx, assignment)
	if err != nil {
		return domain.CollaborationRecord{}, domain.NewCollaborationError(lead.Name(), fmt.Errorf("draft: %w", err))
	}
	partnerOut, err := partner.Draft(ctx, assignment, leadOut)
	if err != nil {
		return domain.CollaborationRecord{}, domain.NewCollaborationError(partner.Name(), fmt.Errorf("draft: %w", err))
	}
	log.Debug("opening drafts complete", "lead_len", len(leadOut), "partner_len", len(partnerOut))

	record := domain.CollaborationRecord{
		Participants:   []string{lead.Name(), partner.Name()},
		FeedbackCycles: make([]domain.ExchangeCycle, 0, c.cfg.ExchangeCount),
	}

	for exchange := 0; exchange < c.cfg.ExchangeCount; exchange++ {
		select {
		case <-ctx.Done():
			return domain.CollaborationRecord{}, fmt.Errorf("%w before exchange %d: %w", errRunCancelled, exchange, ctx.Err())
		default:
		}

		feedback, err := lead.Review(ctx, leadOut, partnerOut)
		if err != nil {
			return domain.CollaborationRecord{}, domain.NewCollaborationError(
				lead.Name(), fmt.Errorf("review on exchange %d: %w", exchange, err))
		}

		partnerOut, err = partner.Revise(ctx, partnerOut, feedback)
		if err != nil {
			return domain.CollaborationRecord{}, domain.NewCollaborationError(
				partner.Name(), fmt.Errorf("revise on exchange %d: %w", exchange, err))
		}

		leadOut, err = lead.Incorporate(ctx, leadOut, partnerOut)
		if err != nil {
			return domain.CollaborationRecord{}, domain.NewCollaborationError(
				lead.Name(), fmt.Errorf("incorporate on exchange %d: %w", exchange, err))
		}

		record.FeedbackCycles = append(record.FeedbackCycles, domain.ExchangeCycle{
			CycleIndex:    exchange,
			Feedback:      feedback.Clone(),
			RevisedOutput: partnerOut,
		})
		record.Revisions++

		if c.observer != nil {
			c.observer(exchange, feedback)
		}
		log.Debug("exchange complete", "exchange", exchange, "feedback_items", len(feedback))
	}

	record.FinalLead = leadOut
	record.FinalPartner = partnerOut
	log.Info("collaboration complete", "exchanges", c.cfg.ExchangeCount, "revisions", record.Revisions)
	return record, nil
}
