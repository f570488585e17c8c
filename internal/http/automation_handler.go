package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
)

type automationRunner interface {
	Run(ctx context.Context) (application.RunSummary, error)
}

// AutomationHandler exposes the automation pass to an external cron.
type AutomationHandler struct {
	runner    automationRunner
	responder responder
	logger    *slog.Logger
}

func NewAutomationHandler(runner automationRunner, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{runner: runner, responder: newResponder(logger), logger: logger}
}

// Run handles POST /internal/automations/run.
func (h *AutomationHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.runner == nil {
		h.responderOrDefault().writeError(r.Context(), w, http.StatusServiceUnavailable, "UNAVAILABLE", errServiceNotAvailable)
		return
	}

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		handlerLogger(r.Context(), h.logger, "AutomationHandler", "Run").
			ErrorContext(r.Context(), "automation run failed", "error", err, "automations", summary.Automations)
		h.responder.writeJSON(r.Context(), w, http.StatusInternalServerError, runFailureResponse{
			errorResponse: errorResponse{Code: "AUTOMATION_RUN_FAILED", Message: err.Error()},
			Summary:       toRunSummaryDTO(summary),
		})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRunSummaryDTO(summary))
}

func (h *AutomationHandler) responderOrDefault() responder {
	if h == nil {
		return newResponder(nil)
	}
	return h.responder
}

type runFailureResponse struct {
	errorResponse
	Summary runSummaryDTO `json:"summary"`
}

type automationResultDTO struct {
	AutomationID string `json:"automationId"`
	StudioID     string `json:"studioId"`
	Name         string `json:"name"`
	Trigger      string `json:"trigger"`
	Candidates   int    `json:"candidates"`
	Sent         int    `json:"sent"`
	Skipped      int    `json:"skipped"`
	Duplicates   int    `json:"duplicates"`
	Failed       int    `json:"failed"`
	Error        string `json:"error,omitempty"`
}

type runSummaryDTO struct {
	StartedAt       string                `json:"startedAt"`
	FinishedAt      string                `json:"finishedAt"`
	Automations     int                   `json:"automations"`
	TotalCandidates int                   `json:"totalCandidates"`
	TotalSent       int                   `json:"totalSent"`
	TotalSkipped    int                   `json:"totalSkipped"`
	TotalDuplicates int                   `json:"totalDuplicates"`
	TotalFailed     int                   `json:"totalFailed"`
	Results         []automationResultDTO `json:"results"`
}

func toRunSummaryDTO(summary application.RunSummary) runSummaryDTO {
	results := make([]automationResultDTO, 0, len(summary.Results))
	for _, result := range summary.Results {
		results = append(results, automationResultDTO{
			AutomationID: result.AutomationID,
			StudioID:     result.StudioID,
			Name:         result.Name,
			Trigger:      result.Trigger,
			Candidates:   result.Candidates,
			Sent:         result.Sent,
			Skipped:      result.Skipped,
			Duplicates:   result.Duplicates,
			Failed:       result.Failed,
			Error:        result.Error,
		})
	}
	return runSummaryDTO{
		StartedAt:       formatTimestamp(summary.StartedAt),
		FinishedAt:      formatTimestamp(summary.FinishedAt),
		Automations:     summary.Automations,
		TotalCandidates: summary.TotalCandidates,
		TotalSent:       summary.TotalSent,
		TotalSkipped:    summary.TotalSkipped,
		TotalDuplicates: summary.TotalDuplicates,
		TotalFailed:     summary.TotalFailed,
		Results:         results,
	}
}
