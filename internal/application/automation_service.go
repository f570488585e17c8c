package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/automation"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/notify"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// Outcome classifies what happened to one automation candidate.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"

	// outcomeInterrupted marks a candidate left unclaimed because ctx ended.
	outcomeInterrupted Outcome = "interrupted"
)

// DedupePolicy decides which existing outbox rows block a re-send.
type DedupePolicy string

const (
	// DedupeAny treats any existing message row as already handled.
	DedupeAny DedupePolicy = "any"
	// DedupeSentOnly retries candidates whose earlier attempt FAILED.
	DedupeSentOnly DedupePolicy = "sent_only"
)

// ParseDedupePolicy normalises a configured policy name. Empty means DedupeAny.
func ParseDedupePolicy(value string) (DedupePolicy, error) {
	switch DedupePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", DedupeAny:
		return DedupeAny, nil
	case DedupeSentOnly:
		return DedupeSentOnly, nil
	}
	return "", fmt.Errorf("unknown dedupe policy %q", value)
}

var errMissingContact = errors.New("client has no contact for channel")

// AutomationRunResult reports the processing of one automation.
type AutomationRunResult struct {
	AutomationID string
	StudioID     string
	Name         string
	Trigger      string
	Candidates   int
	Sent         int
	// Skipped counts candidates that were not delivered, failures included.
	Skipped    int
	Duplicates int
	Failed     int
	// Error is set when candidate selection failed for the automation or
	// the run ended before every candidate was processed.
	Error string
}

// RunSummary is the outcome of one pass over all active automations.
type RunSummary struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Automations     int
	TotalCandidates int
	TotalSent       int
	TotalSkipped    int
	TotalDuplicates int
	TotalFailed     int
	Results         []AutomationRunResult
}

func (s *RunSummary) add(result AutomationRunResult) {
	s.Automations++
	s.TotalCandidates += result.Candidates
	s.TotalSent += result.Sent
	s.TotalSkipped += result.Skipped
	s.TotalDuplicates += result.Duplicates
	s.TotalFailed += result.Failed
	s.Results = append(s.Results, result)
}

// AutomationDependencies groups the collaborators of AutomationService.
type AutomationDependencies struct {
	Automations persistence.AutomationRepository
	Messages    persistence.MessageRepository
	Source      automation.Source
	Sender      notify.Sender
	// Registry defaults to automation.NewRegistry().
	Registry    *automation.Registry
	Policy      DedupePolicy
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// AutomationService runs automation passes: it selects candidates for every
// active automation, dedupes them against the outbox and sends the rest.
type AutomationService struct {
	automations     persistence.AutomationRepository
	messages        persistence.MessageRepository
	source          automation.Source
	sender          notify.Sender
	registry        *automation.Registry
	policy          DedupePolicy
	idGenerator     func() string
	now             func() time.Time
	defaultLocation *time.Location
	zones           *zoneCache
	recorder        Recorder
	logger          *slog.Logger
}

// NewAutomationService wires dependencies for automation runs.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	if deps.Registry == nil {
		deps.Registry = automation.NewRegistry()
	}
	if deps.Policy == "" {
		deps.Policy = DedupeAny
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AutomationService{
		automations:     deps.Automations,
		messages:        deps.Messages,
		source:          deps.Source,
		sender:          deps.Sender,
		registry:        deps.Registry,
		policy:          deps.Policy,
		idGenerator:     deps.IDGenerator,
		now:             deps.Now,
		defaultLocation: time.UTC,
		zones:           newZoneCache(0, 0, deps.Now),
		recorder:        noopRecorder{},
		logger:          defaultLogger(deps.Logger),
	}
}

// SetDefaultLocation sets the zone used for studios without a valid timezone.
func (s *AutomationService) SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		s.defaultLocation = loc
	}
}

// SetRecorder installs an operational metrics recorder.
func (s *AutomationService) SetRecorder(r Recorder) {
	s.recorder = defaultRecorder(r)
}

func (s *AutomationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AutomationService", operation, attrs...)
}

// Run processes every active automation across all studios. A failure while
// evaluating one automation or delivering to one candidate is recorded in the
// summary and does not stop the pass. The returned error is non-nil only when
// the automation list cannot be loaded or ctx ends mid-run; the partial
// summary is still returned in the latter case.
func (s *AutomationService) Run(ctx context.Context) (summary RunSummary, err error) {
	if s == nil {
		err = fmt.Errorf("AutomationService is nil")
		return
	}
	if s.automations == nil || s.messages == nil || s.source == nil || s.sender == nil {
		err = fmt.Errorf("AutomationService is not fully configured")
		return
	}

	logger := s.loggerWith(ctx, "Run")
	summary.StartedAt = s.now()
	defer func() {
		summary.FinishedAt = s.now()
		s.recorder.AutomationRun(summary.FinishedAt.Sub(summary.StartedAt), err)
		if err != nil {
			logger.ErrorContext(ctx, "automation run aborted", "error", err, "automations", summary.Automations)
			return
		}
		logger.InfoContext(ctx, "automation run completed",
			"automations", summary.Automations,
			"candidates", summary.TotalCandidates,
			"sent", summary.TotalSent,
			"skipped", summary.TotalSkipped,
			"duplicates", summary.TotalDuplicates,
			"failed", summary.TotalFailed,
		)
	}()

	targets, listErr := s.automations.ListActiveAutomations(ctx)
	if listErr != nil {
		err = fmt.Errorf("list active automations: %w", listErr)
		return
	}

	for _, target := range targets {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			return
		}
		summary.add(s.runAutomation(ctx, target, summary.StartedAt))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return
}

func (s *AutomationService) runAutomation(ctx context.Context, target persistence.AutomationTarget, now time.Time) AutomationRunResult {
	rule := target.Automation
	result := AutomationRunResult{
		AutomationID: rule.ID,
		StudioID:     rule.StudioID,
		Name:         rule.Name,
		Trigger:      rule.Trigger,
	}
	logger := s.loggerWith(ctx, "RunAutomation",
		"studio_id", rule.StudioID,
		"automation_id", rule.ID,
		"trigger", rule.Trigger,
	)

	ev := automation.Evaluation{
		Automation: rule,
		Studio:     target.Studio,
		Location:   s.studioLocation(target.Studio),
		Now:        now,
	}
	candidates, err := s.registry.Select(ctx, s.source, ev)
	if err != nil {
		result.Error = err.Error()
		logger.WarnContext(ctx, "automation evaluation failed", "error", err)
		return result
	}
	// Select succeeded, so the trigger name is known to parse.
	trigger, _ := automation.ParseTrigger(rule.Trigger)
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			result.Error = string(outcomeInterrupted)
			break
		}
		outcome, deliverErr := s.deliver(ctx, rule, trigger, candidate)
		if outcome == outcomeInterrupted {
			result.Error = string(outcomeInterrupted)
			break
		}
		switch outcome {
		case OutcomeSent:
			result.Sent++
		case OutcomeDuplicate:
			result.Duplicates++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Skipped++
			result.Failed++
		}
		if deliverErr != nil {
			logger.WarnContext(ctx, "automation candidate not delivered",
				"client_id", candidate.Client.ID,
				"key", candidate.Key,
				"outcome", string(outcome),
				"error", deliverErr,
			)
		}
	}

	for outcome, count := range map[Outcome]int{
		OutcomeSent:      result.Sent,
		OutcomeDuplicate: result.Duplicates,
		OutcomeSkipped:   result.Skipped - result.Failed,
		OutcomeFailed:    result.Failed,
	} {
		if count > 0 {
			s.recorder.AutomationOutcome(string(trigger), outcome, count)
		}
	}
	logger.InfoContext(ctx, "automation processed",
		"candidates", result.Candidates,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"failed", result.Failed,
	)
	return result
}

// deliver sends one candidate at most once. The outbox insert is the claim:
// a unique violation means another run already owns the key.
func (s *AutomationService) deliver(ctx context.Context, rule persistence.Automation, trigger automation.Trigger, candidate automation.Candidate) (Outcome, error) {
	threadID := automation.IdempotencyKey(rule.ID, trigger, candidate.Key)

	reclaim := false
	existing, err := s.messages.FindMessage(ctx, rule.StudioID, rule.ID, threadID)
	switch {
	case err == nil:
		if s.policy != DedupeSentOnly || existing.Status != persistence.MessageFailed {
			return OutcomeDuplicate, nil
		}
		reclaim = true
	case errors.Is(err, persistence.ErrNotFound):
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcomeInterrupted, ctxErr
		}
		return OutcomeFailed, fmt.Errorf("find message: %w", err)
	}

	subject := automation.Render(rule.Subject, candidate.Vars)
	body := automation.Render(rule.Body, candidate.Vars)
	html := automation.Render(rule.HTMLBody, candidate.Vars)

	recipient := recipientFor(rule.Channel, candidate.Client)
	if recipient == "" {
		return OutcomeSkipped, fmt.Errorf("%w %s", errMissingContact, rule.Channel)
	}

	if err := ctx.Err(); err != nil {
		return outcomeInterrupted, err
	}

	now := s.now()
	message := persistence.Message{
		ID:           s.idGenerator(),
		StudioID:     rule.StudioID,
		AutomationID: rule.ID,
		ClientID:     candidate.Client.ID,
		ThreadID:     threadID,
		Channel:      rule.Channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		Status:       persistence.MessageQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if reclaim {
		claimed, err := s.messages.ReclaimFailedMessage(ctx, message)
		if errors.Is(err, persistence.ErrNotFound) {
			return OutcomeDuplicate, nil
		}
		if err != nil {
			return OutcomeFailed, fmt.Errorf("reclaim message: %w", err)
		}
		message.ID = claimed.ID
		message.CreatedAt = claimed.CreatedAt
	} else if err := s.messages.ClaimMessage(ctx, message); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, fmt.Errorf("claim message: %w", err)
	}

	sent, sendErr := s.sender.Send(ctx, notify.Message{
		Channel:  rule.Channel,
		To:       recipient,
		Subject:  subject,
		Text:     body,
		HTML:     html,
		ThreadID: threadID,
	})
	message.UpdatedAt = s.now()
	// The claim is held now, so the outcome is recorded even if ctx ended.
	record := context.WithoutCancel(ctx)

	if sendErr != nil || !sent.Success {
		reason := sent.Error
		if sendErr != nil {
			reason = sendErr.Error()
		}
		if reason == "" {
			reason = "provider rejected message"
		}
		message.Status = persistence.MessageFailed
		message.FailureReason = reason
		if err := s.messages.CompleteMessage(record, message); err != nil {
			return OutcomeFailed, fmt.Errorf("send failed (%s); record failure: %w", reason, err)
		}
		return OutcomeFailed, fmt.Errorf("send failed: %s", reason)
	}

	sentAt := message.UpdatedAt
	message.Status = persistence.MessageSent
	message.ProviderMessageID = sent.MessageID
	message.SentAt = &sentAt

	logger := s.loggerWith(ctx, "Deliver", "automation_id", rule.ID, "message_id", message.ID)
	if err := s.messages.CompleteMessage(record, message); err != nil {
		logger.ErrorContext(ctx, "failed to record sent message", "error", err)
	}
	if err := s.automations.IncrementCounters(record, rule.StudioID, rule.ID); err != nil {
		logger.ErrorContext(ctx, "failed to increment automation counters", "error", err)
	}
	return OutcomeSent, nil
}

func recipientFor(channel persistence.Channel, client persistence.Client) string {
	switch channel {
	case persistence.ChannelEmail:
		return strings.TrimSpace(client.Email)
	case persistence.ChannelSMS:
		return strings.TrimSpace(client.Phone)
	}
	return ""
}

func (s *AutomationService) studioLocation(studio persistence.Studio) *time.Location {
	if studio.Timezone != "" {
		if loc, err := s.zones.Lookup(studio.Timezone); err == nil {
			return loc
		}
	}
	return s.defaultLocation
}
