package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/recurrence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/scheduler"
)

// MaxListRange bounds the window accepted by ListSessions.
const MaxListRange = 366 * 24 * time.Hour

// ScheduleService validates and persists class sessions. Every write runs the
// conflict check and the mutation in one transaction.
type ScheduleService struct {
	repo            persistence.ScheduleRepository
	idGenerator     func() string
	now             func() time.Time
	defaultLocation *time.Location
	zones           *zoneCache
	recorder        Recorder
	logger          *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(repo persistence.ScheduleRepository, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(repo, idGenerator, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies for schedule operations with a specified logger.
func NewScheduleServiceWithLogger(repo persistence.ScheduleRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		repo:            repo,
		idGenerator:     idGenerator,
		now:             now,
		defaultLocation: time.UTC,
		zones:           newZoneCache(0, 0, now),
		recorder:        noopRecorder{},
		logger:          defaultLogger(logger),
	}
}

// SetDefaultLocation sets the zone used for studios without a valid timezone.
func (s *ScheduleService) SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		s.defaultLocation = loc
	}
}

// SetRecorder installs an operational metrics recorder.
func (s *ScheduleService) SetRecorder(r Recorder) {
	s.recorder = defaultRecorder(r)
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

func (s *ScheduleService) logOutcome(ctx context.Context, logger *slog.Logger, operation, message string, err error) {
	kind := ErrorKind(err)
	s.recorder.ScheduleRejected(operation, kind)
	if kind == "unexpected" {
		logger.ErrorContext(ctx, message, "error", err, "error_kind", kind)
		return
	}
	logger.WarnContext(ctx, message, "error", err, "error_kind", kind)
}

// CreateSession creates one session after verifying tenant ownership of its
// references and the absence of blocked-time and double-booking conflicts.
func (s *ScheduleService) CreateSession(ctx context.Context, studioID string, input SessionInput) (session Session, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateSession",
		"studio_id", studioID,
		"teacher_id", input.TeacherID,
		"location_id", input.LocationID,
	)
	defer func() {
		if err != nil {
			s.logOutcome(ctx, logger, "create_single", "failed to create session", err)
			return
		}
		s.recorder.SessionsCreated("single", 1)
		logger.With("session_id", session.ID).InfoContext(ctx, "session created")
	}()

	if vErr := validateSessionInput(studioID, input, true); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		classType, err := resolveReferences(ctx, tx, studioID, input)
		if err != nil {
			return err
		}

		candidate := scheduler.Session{
			TeacherID:  input.TeacherID,
			LocationID: input.LocationID,
			Start:      input.Start,
			End:        input.End,
		}
		index, err := loadConflictIndex(ctx, tx, studioID, []scheduler.Session{candidate}, nil, true)
		if err != nil {
			return err
		}
		if conflicts := index.blocked(candidate); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		if conflicts := index.booked(candidate); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		now := s.now()
		record := persistence.ClassSession{
			ID:          s.idGenerator(),
			StudioID:    studioID,
			ClassTypeID: input.ClassTypeID,
			TeacherID:   input.TeacherID,
			LocationID:  input.LocationID,
			Start:       input.Start,
			End:         input.End,
			Capacity:    capacityFor(input, classType),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertSessions(ctx, []persistence.ClassSession{record}); err != nil {
			return mapScheduleRepoError(err)
		}
		session = toSession(record)
		return nil
	})
	return
}

// CreateRecurringSeries expands a weekly pattern and creates every occurrence
// that is free of conflicts. Occurrences hitting a blocked time or an
// existing session are skipped and reported. When nothing can be created a
// RecurringConflictError lists every skipped occurrence.
func (s *ScheduleService) CreateRecurringSeries(ctx context.Context, studioID string, input SessionInput, pattern RecurringInput) (result RecurringResult, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRecurringSeries",
		"studio_id", studioID,
		"teacher_id", input.TeacherID,
		"location_id", input.LocationID,
	)
	defer func() {
		if err != nil {
			s.logOutcome(ctx, logger, "create_recurring", "failed to create recurring series", err)
			return
		}
		s.recorder.SessionsCreated("recurring", len(result.Created))
		logger.InfoContext(ctx, "recurring series created",
			"recurring_group_id", result.RecurringGroupID,
			"created", len(result.Created),
			"skipped_blocked", result.SkippedBlocked,
			"skipped_conflict", result.SkippedConflict,
		)
	}()

	vErr := validateSessionInput(studioID, input, false)
	weekdays, recurrenceErr := validateRecurringInput(pattern)
	vErr.merge(recurrenceErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		classType, err := resolveReferences(ctx, tx, studioID, input)
		if err != nil {
			return err
		}
		studio, err := tx.GetStudio(ctx, studioID)
		if err != nil {
			return ownershipError(err, "studioId", studioID)
		}

		engine := recurrence.NewEngine(s.studioLocation(ctx, studio))
		occurrences, err := engine.Expand(input.Start, recurrence.Pattern{
			Weekdays:  weekdays,
			EndDate:   pattern.EndDate,
			TimeOfDay: pattern.Time,
			Duration:  time.Duration(pattern.Duration) * time.Minute,
			SkipFirst: pattern.SkipFirst,
		})
		if err != nil {
			return recurrenceValidationError(err)
		}
		if len(occurrences) == 0 {
			vErr := &ValidationError{}
			vErr.add("recurring", "pattern produces no occurrences")
			return vErr
		}

		candidates := make([]scheduler.Session, len(occurrences))
		for i, occ := range occurrences {
			candidates[i] = scheduler.Session{
				ID:         fmt.Sprintf("occurrence-%d", i),
				TeacherID:  input.TeacherID,
				LocationID: input.LocationID,
				Start:      occ.Start,
				End:        occ.End,
			}
		}
		if overlaps := scheduler.DetectBatchOverlap(candidates); len(overlaps) > 0 {
			vErr := &ValidationError{}
			vErr.add("recurring.duration", "occurrences overlap each other")
			return vErr
		}

		index, err := loadConflictIndex(ctx, tx, studioID, candidates, nil, true)
		if err != nil {
			return err
		}

		groupID := s.idGenerator()
		now := s.now()
		capacity := capacityFor(input, classType)
		records := make([]persistence.ClassSession, 0, len(candidates))
		skipped := make([]SkippedOccurrence, 0)
		for i, candidate := range candidates {
			skip := SkippedOccurrence{
				Date:  occurrences[i].Date.Format(time.DateOnly),
				Start: candidate.Start,
				End:   candidate.End,
			}
			if conflicts := index.blocked(candidate); len(conflicts) > 0 {
				skip.Reason, skip.Conflicts = SkipReasonBlockedTime, conflicts
				skipped = append(skipped, skip)
				result.SkippedBlocked++
				continue
			}
			if conflicts := index.booked(candidate); len(conflicts) > 0 {
				skip.Reason, skip.Conflicts = SkipReasonConflict, conflicts
				skipped = append(skipped, skip)
				result.SkippedConflict++
				continue
			}
			group := groupID
			records = append(records, persistence.ClassSession{
				ID:               s.idGenerator(),
				StudioID:         studioID,
				ClassTypeID:      input.ClassTypeID,
				TeacherID:        input.TeacherID,
				LocationID:       input.LocationID,
				Start:            candidate.Start,
				End:              candidate.End,
				Capacity:         capacity,
				RecurringGroupID: &group,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}

		if len(records) == 0 {
			return &RecurringConflictError{Skipped: skipped}
		}
		if err := tx.InsertSessions(ctx, records); err != nil {
			return mapScheduleRepoError(err)
		}

		result.RecurringGroupID = groupID
		result.Skipped = skipped
		result.Created = make([]Session, len(records))
		for i, record := range records {
			result.Created[i] = toSession(record)
		}
		return nil
	})
	if err != nil {
		result = RecurringResult{}
	}
	return
}

// BulkDelete removes the target sessions. The whole operation is refused
// when any target session holds a booking that is not cancelled.
func (s *ScheduleService) BulkDelete(ctx context.Context, studioID string, target SessionTarget) (result BulkDeleteResult, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "BulkDelete", "studio_id", studioID, "recurring_group_id", target.RecurringGroupID)
	defer func() {
		if err != nil {
			s.logOutcome(ctx, logger, "bulk_delete", "failed to delete sessions", err)
			return
		}
		logger.InfoContext(ctx, "sessions deleted", "deleted", result.Deleted)
	}()

	if vErr := validateTarget(studioID, target); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		selected, err := tx.SelectSessions(ctx, studioID, s.selector(target))
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return nil
		}
		ids := sessionIDs(selected)

		withBookings, err := tx.CountSessionsWithActiveBookings(ctx, studioID, ids)
		if err != nil {
			return err
		}
		if withBookings > 0 {
			return &BookingSafetyError{SessionCount: withBookings}
		}

		deleted, err := tx.DeleteSessions(ctx, studioID, ids)
		if err != nil {
			return err
		}
		result.Deleted = deleted
		return nil
	})
	if err != nil {
		result = BulkDeleteResult{}
	}
	return
}

// BulkReassign moves the target sessions to a new teacher and/or location.
// The new assignment is checked against existing sessions, against the
// teacher's blocked times when the teacher changes, and within the target set
// itself; any conflict rejects the whole operation.
func (s *ScheduleService) BulkReassign(ctx context.Context, studioID string, input ReassignInput) (result BulkReassignResult, err error) {
	if s == nil {
		err = fmt.Errorf("ScheduleService is nil")
		return
	}

	logger := s.loggerWith(ctx, "BulkReassign", "studio_id", studioID, "recurring_group_id", input.Target.RecurringGroupID)
	defer func() {
		if err != nil {
			s.logOutcome(ctx, logger, "bulk_reassign", "failed to reassign sessions", err)
			return
		}
		logger.InfoContext(ctx, "sessions reassigned",
			"updated", result.Updated,
			"sessions_with_bookings", result.SessionsWithBookings,
		)
	}()

	vErr := validateTarget(studioID, input.Target)
	if input.TeacherID == nil && input.LocationID == nil {
		vErr.add("teacherId", "teacherId or locationId is required")
	}
	if input.TeacherID != nil && *input.TeacherID == "" {
		vErr.add("teacherId", "teacherId must not be empty")
	}
	if input.LocationID != nil && *input.LocationID == "" {
		vErr.add("locationId", "locationId must not be empty")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
		if input.TeacherID != nil {
			if _, err := tx.GetTeacher(ctx, studioID, *input.TeacherID); err != nil {
				return ownershipError(err, "teacherId", *input.TeacherID)
			}
		}
		if input.LocationID != nil {
			if _, err := tx.GetLocation(ctx, studioID, *input.LocationID); err != nil {
				return ownershipError(err, "locationId", *input.LocationID)
			}
		}

		selected, err := tx.SelectSessions(ctx, studioID, s.selector(input.Target))
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return nil
		}

		ids := sessionIDs(selected)
		exclude := make(map[string]struct{}, len(ids))
		proposed := make([]scheduler.Session, len(selected))
		for i, session := range selected {
			exclude[session.ID] = struct{}{}
			p := toSchedulerSession(session)
			if input.TeacherID != nil {
				p.TeacherID = *input.TeacherID
			}
			if input.LocationID != nil {
				p.LocationID = *input.LocationID
			}
			proposed[i] = p
		}

		checkBlocks := input.TeacherID != nil
		index, err := loadConflictIndex(ctx, tx, studioID, proposed, exclude, checkBlocks)
		if err != nil {
			return err
		}
		var conflicts []scheduler.Conflict
		for _, p := range proposed {
			if checkBlocks {
				conflicts = append(conflicts, index.blocked(p)...)
			}
			conflicts = append(conflicts, index.booked(p)...)
		}
		conflicts = append(conflicts, scheduler.DetectBatchOverlap(proposed)...)
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		withBookings, err := tx.CountSessionsWithActiveBookings(ctx, studioID, ids)
		if err != nil {
			return err
		}
		updated, err := tx.ReassignSessions(ctx, studioID, ids, input.TeacherID, input.LocationID, s.now())
		if err != nil {
			return mapScheduleRepoError(err)
		}
		result = BulkReassignResult{Updated: updated, SessionsWithBookings: withBookings}
		return nil
	})
	if err != nil {
		result = BulkReassignResult{}
	}
	return
}

// ListSessions returns the studio's sessions intersecting [from, to).
func (s *ScheduleService) ListSessions(ctx context.Context, studioID string, from, to time.Time) ([]SessionListing, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}

	vErr := &ValidationError{}
	if studioID == "" {
		vErr.add("studioId", "studio is required")
	}
	switch {
	case from.IsZero() || to.IsZero():
		vErr.add("range", "from and to are required")
	case !to.After(from):
		vErr.add("range", "to must be after from")
	case to.Sub(from) > MaxListRange:
		vErr.add("range", "range must not exceed 366 days")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	listings, err := s.repo.ListSessions(ctx, studioID, from, to)
	if err != nil {
		s.loggerWith(ctx, "ListSessions", "studio_id", studioID).
			ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	out := make([]SessionListing, len(listings))
	for i, listing := range listings {
		out[i] = SessionListing{
			Session:        toSession(listing.Session),
			ClassTypeName:  listing.ClassTypeName,
			TeacherName:    listing.TeacherName,
			LocationName:   listing.LocationName,
			ActiveBookings: listing.ActiveBookings,
		}
	}
	return out, nil
}

// CheckConflicts runs the create-time conflict checks for a proposed slot
// without persisting anything.
func (s *ScheduleService) CheckConflicts(ctx context.Context, studioID string, query ConflictQuery) (ConflictReport, error) {
	if s == nil {
		return ConflictReport{}, fmt.Errorf("ScheduleService is nil")
	}

	vErr := &ValidationError{}
	if studioID == "" {
		vErr.add("studioId", "studio is required")
	}
	if query.TeacherID == "" && query.LocationID == "" {
		vErr.add("teacherId", "teacherId or locationId is required")
	}
	validateInterval(query.Start, query.End, vErr)
	if vErr.HasErrors() {
		return ConflictReport{}, vErr
	}

	if query.TeacherID != "" {
		if _, err := s.repo.GetTeacher(ctx, studioID, query.TeacherID); err != nil {
			return ConflictReport{}, ownershipError(err, "teacherId", query.TeacherID)
		}
	}
	if query.LocationID != "" {
		if _, err := s.repo.GetLocation(ctx, studioID, query.LocationID); err != nil {
			return ConflictReport{}, ownershipError(err, "locationId", query.LocationID)
		}
	}

	candidate := scheduler.Session{
		ID:         query.ExcludeSessionID,
		TeacherID:  query.TeacherID,
		LocationID: query.LocationID,
		Start:      query.Start,
		End:        query.End,
	}
	index, err := loadConflictIndex(ctx, s.repo, studioID, []scheduler.Session{candidate}, nil, query.TeacherID != "")
	if err != nil {
		return ConflictReport{}, err
	}
	conflicts := append(index.blocked(candidate), index.booked(candidate)...)
	return ConflictReport{Conflicts: conflicts}, nil
}

func (s *ScheduleService) selector(target SessionTarget) persistence.SessionSelector {
	return persistence.SessionSelector{
		IDs:              uniqueStrings(target.IDs),
		RecurringGroupID: target.RecurringGroupID,
		FutureOnly:       target.FutureOnly,
		Now:              s.now(),
	}
}

func (s *ScheduleService) studioLocation(ctx context.Context, studio persistence.Studio) *time.Location {
	if studio.Timezone == "" {
		return s.defaultLocation
	}
	loc, err := s.zones.Lookup(studio.Timezone)
	if err != nil {
		s.loggerWith(ctx, "studioLocation", "studio_id", studio.ID).
			WarnContext(ctx, "invalid studio timezone, using default", "timezone", studio.Timezone, "error", err)
		return s.defaultLocation
	}
	return loc
}

// conflictIndex holds the sessions and blocks that can intersect a batch of
// candidates, loaded with one range query each.
type conflictIndex struct {
	sessions []scheduler.Session
	blocks   []scheduler.BlockedTime
}

func loadConflictIndex(ctx context.Context, reader persistence.ScheduleReader, studioID string, candidates []scheduler.Session, exclude map[string]struct{}, withBlocks bool) (conflictIndex, error) {
	var index conflictIndex
	if len(candidates) == 0 {
		return index, nil
	}

	from, to := candidates[0].Start, candidates[0].End
	var teacherIDs, locationIDs []string
	for _, c := range candidates {
		if c.Start.Before(from) {
			from = c.Start
		}
		if c.End.After(to) {
			to = c.End
		}
		if c.TeacherID != "" {
			teacherIDs = append(teacherIDs, c.TeacherID)
		}
		if c.LocationID != "" {
			locationIDs = append(locationIDs, c.LocationID)
		}
	}
	teacherIDs, locationIDs = uniqueStrings(teacherIDs), uniqueStrings(locationIDs)

	existing, err := reader.ListSessionsOverlapping(ctx, studioID, teacherIDs, locationIDs, from, to)
	if err != nil {
		return index, fmt.Errorf("load overlapping sessions: %w", err)
	}
	for _, session := range existing {
		if _, skip := exclude[session.ID]; skip {
			continue
		}
		index.sessions = append(index.sessions, toSchedulerSession(session))
	}

	if withBlocks && len(teacherIDs) > 0 {
		blocks, err := reader.ListBlockedTimes(ctx, studioID, teacherIDs, from, to)
		if err != nil {
			return index, fmt.Errorf("load blocked times: %w", err)
		}
		for _, block := range blocks {
			index.blocks = append(index.blocks, scheduler.BlockedTime{
				ID:        block.ID,
				TeacherID: block.TeacherID,
				Start:     block.Start,
				End:       block.End,
				Reason:    block.Reason,
			})
		}
	}
	return index, nil
}

func (ix conflictIndex) blocked(candidate scheduler.Session) []scheduler.Conflict {
	return scheduler.DetectBlockedTime(ix.blocks, candidate)
}

func (ix conflictIndex) booked(candidate scheduler.Session) []scheduler.Conflict {
	return scheduler.DetectConflicts(ix.sessions, candidate)
}

func resolveReferences(ctx context.Context, catalog persistence.CatalogRepository, studioID string, input SessionInput) (persistence.ClassType, error) {
	classType, err := catalog.GetClassType(ctx, studioID, input.ClassTypeID)
	if err != nil {
		return persistence.ClassType{}, ownershipError(err, "classTypeId", input.ClassTypeID)
	}
	if _, err := catalog.GetTeacher(ctx, studioID, input.TeacherID); err != nil {
		return persistence.ClassType{}, ownershipError(err, "teacherId", input.TeacherID)
	}
	if _, err := catalog.GetLocation(ctx, studioID, input.LocationID); err != nil {
		return persistence.ClassType{}, ownershipError(err, "locationId", input.LocationID)
	}
	return classType, nil
}

func ownershipError(err error, field, id string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return &OwnershipError{Field: field, ID: id}
	}
	return fmt.Errorf("lookup %s: %w", field, err)
}

func mapScheduleRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrOverlap):
		return &ConflictError{}
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

func recurrenceValidationError(err error) error {
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, recurrence.ErrInvalidTimeOfDay):
		vErr.add("recurring.time", err.Error())
	case errors.Is(err, recurrence.ErrInvalidDuration):
		vErr.add("recurring.duration", err.Error())
	case errors.Is(err, recurrence.ErrNoWeekdays), errors.Is(err, recurrence.ErrInvalidWeekday):
		vErr.add("recurring.days", err.Error())
	case errors.Is(err, recurrence.ErrInvalidWindow), errors.Is(err, recurrence.ErrTooManyOccurrences):
		vErr.add("recurring.endDate", err.Error())
	default:
		return err
	}
	return vErr
}

func validateSessionInput(studioID string, input SessionInput, requireEnd bool) *ValidationError {
	vErr := &ValidationError{}
	if studioID == "" {
		vErr.add("studioId", "studio is required")
	}
	if input.ClassTypeID == "" {
		vErr.add("classTypeId", "classTypeId is required")
	}
	if input.TeacherID == "" {
		vErr.add("teacherId", "teacherId is required")
	}
	if input.LocationID == "" {
		vErr.add("locationId", "locationId is required")
	}
	if requireEnd {
		validateInterval(input.Start, input.End, vErr)
	} else if input.Start.IsZero() {
		vErr.add("startTime", "startTime is required")
	}
	if input.Capacity != nil && *input.Capacity < 0 {
		vErr.add("capacity", "capacity must not be negative")
	}
	return vErr
}

func validateInterval(start, end time.Time, vErr *ValidationError) {
	switch {
	case start.IsZero():
		vErr.add("startTime", "startTime is required")
	case end.IsZero():
		vErr.add("endTime", "endTime is required")
	case !end.After(start):
		vErr.add("endTime", "endTime must be after startTime")
	}
}

func validateRecurringInput(pattern RecurringInput) ([]time.Weekday, *ValidationError) {
	vErr := &ValidationError{}
	weekdays, err := recurrence.WeekdaysFromInts(pattern.Days)
	if err != nil {
		vErr.add("recurring.days", err.Error())
	} else if len(weekdays) == 0 {
		vErr.add("recurring.days", recurrence.ErrNoWeekdays.Error())
	}
	if _, _, err := recurrence.ParseTimeOfDay(pattern.Time); err != nil {
		vErr.add("recurring.time", err.Error())
	}
	if pattern.Duration <= 0 {
		vErr.add("recurring.duration", "duration must be a positive number of minutes")
	}
	if pattern.EndDate.IsZero() {
		vErr.add("recurring.endDate", "endDate is required")
	}
	return weekdays, vErr
}

func validateTarget(studioID string, target SessionTarget) *ValidationError {
	vErr := &ValidationError{}
	if studioID == "" {
		vErr.add("studioId", "studio is required")
	}
	hasIDs := len(target.IDs) > 0
	hasGroup := target.RecurringGroupID != ""
	switch {
	case hasIDs && hasGroup:
		vErr.add("ids", "provide either ids or recurringGroupId, not both")
	case !hasIDs && !hasGroup:
		vErr.add("ids", "ids or recurringGroupId is required")
	}
	for _, id := range target.IDs {
		if id == "" {
			vErr.add("ids", "ids must not contain empty values")
			break
		}
	}
	return vErr
}

func capacityFor(input SessionInput, classType persistence.ClassType) int {
	if input.Capacity != nil {
		return *input.Capacity
	}
	return classType.Capacity
}

func toSession(record persistence.ClassSession) Session {
	return Session{
		ID:               record.ID,
		StudioID:         record.StudioID,
		ClassTypeID:      record.ClassTypeID,
		TeacherID:        record.TeacherID,
		LocationID:       record.LocationID,
		Start:            record.Start,
		End:              record.End,
		Capacity:         record.Capacity,
		RecurringGroupID: record.RecurringGroupID,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func toSchedulerSession(record persistence.ClassSession) scheduler.Session {
	return scheduler.Session{
		ID:         record.ID,
		TeacherID:  record.TeacherID,
		LocationID: record.LocationID,
		Start:      record.Start,
		End:        record.End,
	}
}

func sessionIDs(sessions []persistence.ClassSession) []string {
	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}
	return ids
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
