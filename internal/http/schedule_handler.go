package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/scheduler"
)

type scheduleService interface {
	CreateSession(ctx context.Context, studioID string, input application.SessionInput) (application.Session, error)
	CreateRecurringSeries(ctx context.Context, studioID string, input application.SessionInput, pattern application.RecurringInput) (application.RecurringResult, error)
	BulkDelete(ctx context.Context, studioID string, target application.SessionTarget) (application.BulkDeleteResult, error)
	BulkReassign(ctx context.Context, studioID string, input application.ReassignInput) (application.BulkReassignResult, error)
	ListSessions(ctx context.Context, studioID string, from, to time.Time) ([]application.SessionListing, error)
	CheckConflicts(ctx context.Context, studioID string, query application.ConflictQuery) (application.ConflictReport, error)
}

// ScheduleHandler serves the studio schedule endpoints.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *ScheduleHandler) ready(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	studioID, ok := StudioIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, "STUDIO_REQUIRED", errMissingStudio)
		return "", false
	}
	return studioID, true
}

// Create handles POST /studio/schedule.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	studioID, ok := h.ready(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDecodeError(r.Context(), w, err)
		return
	}
	input, pattern, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if pattern == nil {
		session, err := h.service.CreateSession(r.Context(), studioID, input)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusCreated, createSessionResponse{Session: toSessionDTO(session)})
		return
	}

	result, err := h.service.CreateRecurringSeries(r.Context(), studioID, input, *pattern)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "ScheduleHandler", "Create").InfoContext(r.Context(), "recurring series created",
		"recurring_group_id", result.RecurringGroupID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRecurringResponse(result))
}

// List handles GET /studio/schedule.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	studioID, ok := h.ready(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fields := fieldErrors{}
	from := fields.timestamp("from", query.Get("from"), true)
	to := fields.timestamp("to", query.Get("to"), true)
	if err := fields.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	listings, err := h.service.ListSessions(r.Context(), studioID, from, to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]sessionListingDTO, 0, len(listings))
	for _, listing := range listings {
		out = append(out, sessionListingDTO{
			sessionDTO:     toSessionDTO(listing.Session),
			ClassTypeName:  listing.ClassTypeName,
			TeacherName:    listing.TeacherName,
			LocationName:   listing.LocationName,
			ActiveBookings: listing.ActiveBookings,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: out})
}

// Conflicts handles GET /studio/schedule/conflicts.
func (h *ScheduleHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	studioID, ok := h.ready(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fields := fieldErrors{}
	conflictQuery := application.ConflictQuery{
		TeacherID:        strings.TrimSpace(query.Get("teacherId")),
		LocationID:       strings.TrimSpace(query.Get("locationId")),
		Start:            fields.timestamp("start", query.Get("start"), true),
		End:              fields.timestamp("end", query.Get("end"), true),
		ExcludeSessionID: strings.TrimSpace(query.Get("excludeSessionId")),
	}
	if err := fields.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	report, err := h.service.CheckConflicts(r.Context(), studioID, conflictQuery)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, conflictReportResponse{
		HasConflicts: len(report.Conflicts) > 0,
		Conflicts:    toConflictDTOs(report.Conflicts),
	})
}

// Delete handles DELETE /studio/schedule.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	studioID, ok := h.ready(w, r)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDecodeError(r.Context(), w, err)
		return
	}

	result, err := h.service.BulkDelete(r.Context(), studioID, req.target())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bulkDeleteResponse{Deleted: result.Deleted})
}

// Reassign handles PATCH /studio/schedule.
func (h *ScheduleHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	studioID, ok := h.ready(w, r)
	if !ok {
		return
	}

	var req bulkReassignRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDecodeError(r.Context(), w, err)
		return
	}

	result, err := h.service.BulkReassign(r.Context(), studioID, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	response := bulkReassignResponse{Updated: result.Updated, SessionsWithBookings: result.SessionsWithBookings}
	if result.SessionsWithBookings > 0 {
		response.Warning = "some reassigned sessions have active bookings; notify the affected clients"
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *ScheduleHandler) writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequestBody) {
		h.responder.writeError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	h.responder.handleServiceError(ctx, w, err)
}

// ----------------------------- Requests -----------------------------

type createSessionRequest struct {
	ClassTypeID string            `json:"classTypeId" validate:"required"`
	TeacherID   string            `json:"teacherId" validate:"required"`
	LocationID  string            `json:"locationId" validate:"required"`
	StartTime   string            `json:"startTime" validate:"required"`
	EndTime     string            `json:"endTime"`
	Capacity    *int              `json:"capacity" validate:"omitempty,min=0"`
	Recurring   *recurringRequest `json:"recurring" validate:"omitempty"`
}

type recurringRequest struct {
	Days      []int  `json:"days" validate:"required,min=1,dive,min=0,max=6"`
	EndDate   string `json:"endDate" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Duration  int    `json:"duration" validate:"gt=0"`
	SkipFirst bool   `json:"skipFirst"`
}

func (r createSessionRequest) toInput() (application.SessionInput, *application.RecurringInput, error) {
	fields := fieldErrors{}
	input := application.SessionInput{
		ClassTypeID: strings.TrimSpace(r.ClassTypeID),
		TeacherID:   strings.TrimSpace(r.TeacherID),
		LocationID:  strings.TrimSpace(r.LocationID),
		Start:       fields.timestamp("startTime", r.StartTime, true),
		Capacity:    r.Capacity,
	}

	var pattern *application.RecurringInput
	if r.Recurring == nil {
		input.End = fields.timestamp("endTime", r.EndTime, true)
	} else {
		pattern = &application.RecurringInput{
			Days:      append([]int(nil), r.Recurring.Days...),
			EndDate:   fields.date("recurring.endDate", r.Recurring.EndDate),
			Time:      strings.TrimSpace(r.Recurring.Time),
			Duration:  r.Recurring.Duration,
			SkipFirst: r.Recurring.SkipFirst,
		}
	}
	return input, pattern, fields.err()
}

type bulkDeleteRequest struct {
	IDs              []string `json:"ids" validate:"omitempty,dive,required"`
	RecurringGroupID string   `json:"recurringGroupId"`
	FutureOnly       bool     `json:"futureOnly"`
}

func (r bulkDeleteRequest) target() application.SessionTarget {
	return application.SessionTarget{
		IDs:              append([]string(nil), r.IDs...),
		RecurringGroupID: strings.TrimSpace(r.RecurringGroupID),
		FutureOnly:       r.FutureOnly,
	}
}

type bulkReassignRequest struct {
	IDs              []string `json:"ids" validate:"omitempty,dive,required"`
	RecurringGroupID string   `json:"recurringGroupId"`
	FutureOnly       bool     `json:"futureOnly"`
	TeacherID        *string  `json:"teacherId" validate:"omitempty,min=1"`
	LocationID       *string  `json:"locationId" validate:"omitempty,min=1"`
}

func (r bulkReassignRequest) toInput() application.ReassignInput {
	return application.ReassignInput{
		Target: application.SessionTarget{
			IDs:              append([]string(nil), r.IDs...),
			RecurringGroupID: strings.TrimSpace(r.RecurringGroupID),
			FutureOnly:       r.FutureOnly,
		},
		TeacherID:  trimmedPtr(r.TeacherID),
		LocationID: trimmedPtr(r.LocationID),
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

// ----------------------------- Responses -----------------------------

type sessionDTO struct {
	ID               string  `json:"id"`
	StudioID         string  `json:"studioId"`
	ClassTypeID      string  `json:"classTypeId"`
	TeacherID        string  `json:"teacherId"`
	LocationID       string  `json:"locationId"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
	Capacity         int     `json:"capacity"`
	RecurringGroupID *string `json:"recurringGroupId,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

func toSessionDTO(session application.Session) sessionDTO {
	return sessionDTO{
		ID:               session.ID,
		StudioID:         session.StudioID,
		ClassTypeID:      session.ClassTypeID,
		TeacherID:        session.TeacherID,
		LocationID:       session.LocationID,
		StartTime:        formatTimestamp(session.Start),
		EndTime:          formatTimestamp(session.End),
		Capacity:         session.Capacity,
		RecurringGroupID: session.RecurringGroupID,
		CreatedAt:        formatTimestamp(session.CreatedAt),
		UpdatedAt:        formatTimestamp(session.UpdatedAt),
	}
}

type sessionListingDTO struct {
	sessionDTO
	ClassTypeName  string `json:"classTypeName"`
	TeacherName    string `json:"teacherName"`
	LocationName   string `json:"locationName"`
	ActiveBookings int    `json:"activeBookings"`
}

type createSessionResponse struct {
	Session sessionDTO `json:"session"`
}

type recurringResponse struct {
	RecurringGroupID string       `json:"recurringGroupId"`
	Created          int          `json:"created"`
	SkippedBlocked   int          `json:"skippedBlocked"`
	SkippedConflict  int          `json:"skippedConflict"`
	Sessions         []sessionDTO `json:"sessions"`
	Skipped          []skippedDTO `json:"skipped"`
}

func toRecurringResponse(result application.RecurringResult) recurringResponse {
	sessions := make([]sessionDTO, 0, len(result.Created))
	for _, session := range result.Created {
		sessions = append(sessions, toSessionDTO(session))
	}
	skipped := toSkippedDTOs(result.Skipped)
	if skipped == nil {
		skipped = []skippedDTO{}
	}
	return recurringResponse{
		RecurringGroupID: result.RecurringGroupID,
		Created:          len(result.Created),
		SkippedBlocked:   result.SkippedBlocked,
		SkippedConflict:  result.SkippedConflict,
		Sessions:         sessions,
		Skipped:          skipped,
	}
}

type listSessionsResponse struct {
	Sessions []sessionListingDTO `json:"sessions"`
}

type conflictReportResponse struct {
	HasConflicts bool          `json:"hasConflicts"`
	Conflicts    []conflictDTO `json:"conflicts"`
}

type bulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type bulkReassignResponse struct {
	Updated              int    `json:"updated"`
	SessionsWithBookings int    `json:"sessionsWithBookings"`
	Warning              string `json:"warning,omitempty"`
}

type conflictDTO struct {
	Type          string `json:"type"`
	WithSessionID string `json:"withSessionId,omitempty"`
	BlockedTimeID string `json:"blockedTimeId,omitempty"`
	TeacherID     string `json:"teacherId,omitempty"`
	LocationID    string `json:"locationId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, conflict := range conflicts {
		out = append(out, conflictDTO{
			Type:          string(conflict.Type),
			WithSessionID: conflict.WithSessionID,
			BlockedTimeID: conflict.BlockedTimeID,
			TeacherID:     conflict.TeacherID,
			LocationID:    conflict.LocationID,
			Reason:        conflict.Reason,
			StartTime:     formatTimestamp(conflict.Start),
			EndTime:       formatTimestamp(conflict.End),
		})
	}
	return out
}

type skippedDTO struct {
	Date      string        `json:"date"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Reason    string        `json:"reason"`
	Conflicts []conflictDTO `json:"conflicts"`
}

func toSkippedDTOs(skipped []application.SkippedOccurrence) []skippedDTO {
	if len(skipped) == 0 {
		return nil
	}
	out := make([]skippedDTO, 0, len(skipped))
	for _, occurrence := range skipped {
		out = append(out, skippedDTO{
			Date:      occurrence.Date,
			StartTime: formatTimestamp(occurrence.Start),
			EndTime:   formatTimestamp(occurrence.End),
			Reason:    string(occurrence.Reason),
			Conflicts: toConflictDTOs(occurrence.Conflicts),
		})
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
