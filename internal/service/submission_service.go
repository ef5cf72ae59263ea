package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/models"
	"github.com/noah-isme/mathla-api/internal/observability"
	"github.com/noah-isme/mathla-api/internal/repository"
)

// DefaultMissingReviewNote is stored when a teacher grades missing work without a note.
const DefaultMissingReviewNote = "no work submitted within deadline"

// defaultMissingScore is the score given to missing work when none is supplied.
var defaultMissingScore = decimal.NewFromInt(1)

// SubmissionService orchestrates the submission lifecycle.
type SubmissionService interface {
	DueTransitionMaterializer
	Start(ctx context.Context, caller Caller, req dto.SubmissionStartRequest) (dto.SubmissionResponse, bool, error)
	Create(ctx context.Context, caller Caller, req dto.SubmissionStartRequest) (dto.SubmissionResponse, error)
	List(ctx context.Context, caller Caller, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, caller Caller, id uint) (dto.SubmissionResponse, error)
	Update(ctx context.Context, caller Caller, id uint, req dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, caller Caller, id uint, req dto.GradeSubmissionRequest) (dto.SubmissionResponse, error)
	GradeMissing(ctx context.Context, caller Caller, req dto.GradeMissingRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, caller Caller, id uint, studentID *uint) error
}

// SubmissionDependencies groups the collaborators of the submission service.
// Activity, Events and Cache are optional.
type SubmissionDependencies struct {
	Submissions repository.SubmissionRepository
	Assignments repository.AssignmentRepository
	Roster      repository.RosterRepository
	Users       repository.UserRepository
	Activity    ActivityRecorder
	Events      SubmissionEventPublisher
	Cache       *GradebookCache
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	resolver    *DeadlineResolver
	guard       *SubmissionGuard
	activity    ActivityRecorder
	events      SubmissionEventPublisher
	cache       *GradebookCache
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionDependencies) SubmissionService {
	validate := deps.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	s := &submissionService{
		submissions: deps.Submissions,
		assignments: deps.Assignments,
		users:       deps.Users,
		activity:    deps.Activity,
		events:      deps.Events,
		cache:       deps.Cache,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/mathla-api/internal/service/submission"),
		logger:      deps.Logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
	s.resolver = NewDeadlineResolver(deps.Assignments, deps.Roster)
	s.guard = NewSubmissionGuard(deps.Assignments, deps.Roster, s.resolver, s.clock)

	return s
}

func (s *submissionService) clock() time.Time {
	return s.now()
}

func (s *submissionService) Start(ctx context.Context, caller Caller, req dto.SubmissionStartRequest) (dto.SubmissionResponse, bool, error) {
	if err := s.checkStart(ctx, caller, req); err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	existing, err := s.submissions.LatestForPair(ctx, req.AssignmentID, req.StudentID)
	if err == nil {
		return dto.NewSubmissionResponse(existing), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, false, err
	}

	created, err := s.insertDraft(ctx, caller, req, ActionSubmissionStarted)
	if err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	return dto.NewSubmissionResponse(created), true, nil
}

func (s *submissionService) Create(ctx context.Context, caller Caller, req dto.SubmissionStartRequest) (dto.SubmissionResponse, error) {
	if err := s.checkStart(ctx, caller, req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	created, err := s.insertDraft(ctx, caller, req, ActionSubmissionCreated)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) checkStart(ctx context.Context, caller Caller, req dto.SubmissionStartRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	if req.AssignmentID == 0 || req.StudentID == 0 {
		return ErrIDsRequired
	}
	if caller.IsStudent() && req.StudentID != caller.UserID {
		return ErrNotOwner.WithMessage("students can only submit their own work")
	}

	if _, err := s.assignments.GetByID(ctx, req.AssignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}
	if _, err := s.users.GetByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}

	if err := s.guard.RequireAssigned(ctx, req.AssignmentID, req.StudentID); err != nil {
		return err
	}
	return s.guard.RequireNotPastDeadline(ctx, req.AssignmentID, req.StudentID)
}

func (s *submissionService) insertDraft(ctx context.Context, caller Caller, req dto.SubmissionStartRequest, action string) (models.Submission, error) {
	submission := models.Submission{
		AssignmentID: req.AssignmentID,
		StudentID:    req.StudentID,
		Status:       models.SubmissionStatusDraft,
		CreatedAt:    s.now(),
	}
	if req.TextAnswer != nil {
		submission.TextAnswer = *req.TextAnswer
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return models.Submission{}, err
	}

	s.afterWrite(ctx, caller, action, created, nil)
	return created, nil
}

func (s *submissionService) List(ctx context.Context, caller Caller, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	repoFilter := repository.SubmissionFilter{
		StudentID:    filter.StudentID,
		AssignmentID: filter.AssignmentID,
		TeacherID:    filter.TeacherID,
	}
	if caller.IsStudent() {
		self := caller.UserID
		repoFilter = repository.SubmissionFilter{StudentID: &self}
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	changed, err := s.MaterializeDueTransitions(ctx, caller, submissions)
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		submissions, err = s.submissions.List(ctx, repoFilter)
		if err != nil {
			return nil, err
		}
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

type pairKey struct {
	assignmentID uint
	studentID    uint
}

// MaterializeDueTransitions moves every draft whose effective deadline has
// passed to SUBMITTED and returns how many rows were written. Rows already
// moved by a concurrent caller are not counted.
func (s *submissionService) MaterializeDueTransitions(ctx context.Context, caller Caller, submissions []models.Submission) (int, error) {
	now := s.now()
	dueByPair := map[pairKey]*time.Time{}
	changed := 0

	for i := range submissions {
		submission := submissions[i]
		if !submission.IsDraft() {
			continue
		}

		key := pairKey{assignmentID: submission.AssignmentID, studentID: submission.StudentID}
		dueAt, seen := dueByPair[key]
		if !seen {
			resolved, err := s.resolver.EffectiveDueAt(ctx, submission.AssignmentID, submission.StudentID)
			if err != nil {
				return changed, err
			}
			dueByPair[key] = resolved
			dueAt = resolved
		}

		if !isPast(now, dueAt) {
			continue
		}

		updated, err := s.submissions.MarkSubmittedIfDraft(ctx, submission.ID)
		if err != nil {
			return changed, err
		}
		if !updated {
			continue
		}

		changed++
		submission.Status = models.SubmissionStatusSubmitted
		observability.SubmissionAutoSubmitted().Inc()
		s.afterWrite(ctx, caller, ActionSubmissionAutoSubmitted, submission, map[string]interface{}{
			"due_at": dueAt.Format(time.RFC3339),
		})
	}

	return changed, nil
}

func (s *submissionService) Get(ctx context.Context, caller Caller, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if caller.IsStudent() && submission.StudentID != caller.UserID {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Update(ctx context.Context, caller Caller, id uint, req dto.SubmissionUpdateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if caller.IsStudent() && submission.StudentID != caller.UserID {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	teacher := caller.IsTeacher()
	if !teacher {
		if err := s.guard.RequireNotPastDeadline(ctx, submission.AssignmentID, submission.StudentID); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	var target models.SubmissionStatus
	if req.Status != nil {
		target, err = models.ParseSubmissionStatus(*req.Status)
		if err != nil {
			return dto.SubmissionResponse{}, ErrInvalidStatus.WithMessage("invalid status: " + *req.Status)
		}
	}

	previous := submission.Status
	if req.TextAnswer != nil && !teacher {
		submission.TextAnswer = *req.TextAnswer
	}

	if req.Status != nil {
		switch {
		case teacher && target == models.SubmissionStatusSubmitted && previous == models.SubmissionStatusGraded:
			submission.Status = models.SubmissionStatusSubmitted
		case teacher && target == models.SubmissionStatusDraft &&
			(previous == models.SubmissionStatusGraded || previous == models.SubmissionStatusSubmitted):
			submission.Score = decimal.NullDecimal{}
			submission.Status = models.SubmissionStatusDraft
		default:
			submission.Status = target
		}
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.afterWrite(ctx, caller, ActionSubmissionUpdated, submission, map[string]interface{}{
		"previous_status": string(previous),
	})

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Grade(ctx context.Context, caller Caller, id uint, req dto.GradeSubmissionRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.grade")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("submission.actor_id", int64(caller.UserID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	teacherID, err := actingTeacherID(caller, req.TeacherID)
	if err != nil {
		span.SetStatus(codes.Error, "teacher_mismatch")
		return dto.SubmissionResponse{}, err
	}
	if err := s.guard.RequireTeacherOwnsAssignment(ctx, submission.AssignmentID, teacherID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ownership_check_failed")
		return dto.SubmissionResponse{}, err
	}

	dueAt, err := s.resolver.EffectiveDueAt(ctx, submission.AssignmentID, submission.StudentID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	pastDue := isPast(s.now(), dueAt)
	override := req.TeacherOverride != nil && *req.TeacherOverride

	retake := req.Status != nil && strings.EqualFold(strings.TrimSpace(*req.Status), string(models.SubmissionStatusDraft))
	// An ambiguous call on a graded row, with neither status nor score, is read as a retake.
	if !retake && req.Status == nil && submission.IsGraded() && req.Score == nil {
		retake = true
	}

	canGradeNow := retake ||
		submission.Status == models.SubmissionStatusSubmitted ||
		submission.Status == models.SubmissionStatusGraded ||
		(override && pastDue && submission.IsDraft())
	if !canGradeNow {
		span.SetStatus(codes.Error, "grade_not_allowed")
		return dto.SubmissionResponse{}, ErrGradeNotAllowed
	}

	var score decimal.NullDecimal
	if !retake && req.Score != nil {
		score, err = ParseScore(req.Score)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid_score")
			return dto.SubmissionResponse{}, err
		}
	}

	previous := submission.Status
	action := ActionSubmissionGraded
	if retake {
		action = ActionSubmissionRetake
		submission.Score = decimal.NullDecimal{}
		submission.Status = models.SubmissionStatusDraft
	} else {
		if req.Score != nil {
			submission.Score = score
		}
		submission.Status = models.SubmissionStatusGraded
	}
	// A blank or markup-only note leaves the stored note untouched.
	if req.ReviewNote != nil {
		if note := s.sanitizeNote(*req.ReviewNote); note != nil {
			submission.ReviewNote = note
		}
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = s.now()
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return dto.SubmissionResponse{}, err
	}

	span.SetAttributes(attribute.String("submission.status", string(submission.Status)))
	s.afterWrite(ctx, caller, action, submission, map[string]interface{}{
		"previous_status": string(previous),
		"teacher_id":      teacherID,
		"override":        override,
		"past_due":        pastDue,
	})

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) GradeMissing(ctx context.Context, caller Caller, req dto.GradeMissingRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.grade_missing")
	span.SetAttributes(
		attribute.Int64("submission.assignment_id", int64(req.AssignmentID)),
		attribute.Int64("submission.student_id", int64(req.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if req.AssignmentID == 0 || req.StudentID == 0 {
		return dto.SubmissionResponse{}, ErrIDsRequired
	}

	teacherID, err := actingTeacherID(caller, req.TeacherID)
	if err != nil {
		span.SetStatus(codes.Error, "teacher_mismatch")
		return dto.SubmissionResponse{}, err
	}
	if err := s.guard.RequireTeacherOwnsAssignment(ctx, req.AssignmentID, teacherID); err != nil {
		span.SetStatus(codes.Error, "ownership_check_failed")
		return dto.SubmissionResponse{}, err
	}
	if err := s.guard.RequireAssigned(ctx, req.AssignmentID, req.StudentID); err != nil {
		span.SetStatus(codes.Error, "not_assigned")
		return dto.SubmissionResponse{}, err
	}

	dueAt, err := s.resolver.EffectiveDueAt(ctx, req.AssignmentID, req.StudentID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	override := req.TeacherOverride != nil && *req.TeacherOverride
	if !override || !isPast(s.now(), dueAt) {
		span.SetStatus(codes.Error, "override_required")
		return dto.SubmissionResponse{}, ErrOverrideRequired
	}

	if _, err := s.users.GetByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrStudentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	score, err := ParseScoreOrDefault(req.Score, defaultMissingScore)
	if err != nil {
		span.SetStatus(codes.Error, "invalid_score")
		return dto.SubmissionResponse{}, err
	}

	note := DefaultMissingReviewNote
	if req.ReviewNote != nil && strings.TrimSpace(*req.ReviewNote) != "" {
		if cleaned := s.sanitizeNote(*req.ReviewNote); cleaned != nil {
			note = *cleaned
		}
	}

	submission, err := s.submissions.LatestForPair(ctx, req.AssignmentID, req.StudentID)
	existing := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if !existing {
		submission = models.Submission{
			AssignmentID: req.AssignmentID,
			StudentID:    req.StudentID,
			TextAnswer:   "",
			CreatedAt:    s.now(),
		}
	}

	submission.Score = score
	submission.ReviewNote = &note
	submission.Status = models.SubmissionStatusGraded

	if existing {
		err = s.submissions.Update(ctx, &submission)
	} else {
		err = s.submissions.Create(ctx, &submission)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return dto.SubmissionResponse{}, err
	}

	saved, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.afterWrite(ctx, caller, ActionSubmissionGradedMissing, saved, map[string]interface{}{
		"teacher_id":      teacherID,
		"reused_existing": existing,
	})

	return dto.NewSubmissionResponse(saved), nil
}

func (s *submissionService) Delete(ctx context.Context, caller Caller, id uint, studentID *uint) error {
	submission, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	restrictTo := studentID
	if caller.IsStudent() {
		self := caller.UserID
		restrictTo = &self
	}

	if restrictTo != nil {
		deleted, err := s.submissions.DeleteForStudent(ctx, id, *restrictTo)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrSubmissionNotFound
		}
	} else if err := s.submissions.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	s.afterWrite(ctx, caller, ActionSubmissionDeleted, submission, nil)
	return nil
}

// actingTeacherID resolves the teacher the ownership check runs against.
// Students never grade, and an explicit teacher id must name the caller.
func actingTeacherID(caller Caller, requested *uint) (uint, error) {
	if caller.IsStudent() {
		return 0, ErrNotOwner.WithMessage("only teachers can grade submissions")
	}
	if requested != nil && *requested != 0 && *requested != caller.UserID {
		return 0, ErrNotOwner.WithMessage("teacher_id must match the authenticated teacher")
	}
	return caller.UserID, nil
}

func (s *submissionService) load(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *submissionService) sanitizeNote(raw string) *string {
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// afterWrite runs the best-effort side effects of a lifecycle write. Failures
// are logged and never change the outcome of the operation.
func (s *submissionService) afterWrite(ctx context.Context, caller Caller, action string, submission models.Submission, metadata map[string]interface{}) {
	observability.SubmissionTransitions().WithLabelValues(action).Inc()

	if s.activity != nil {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["assignment_id"] = submission.AssignmentID
		metadata["student_id"] = submission.StudentID
		metadata["status"] = string(submission.Status)

		id := submission.ID
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    caller.UserID,
			ActorRole:  caller.activityRole(),
			Action:     action,
			EntityType: entitySubmission,
			EntityID:   &id,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Str("action", action).Msg("failed to record submission activity")
		}
	}

	if s.events != nil {
		s.events.Publish(ctx, dto.SubmissionEvent{
			Action:       action,
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			StudentID:    submission.StudentID,
			TeacherID:    submission.Assignment.TeacherID,
			Status:       string(submission.Status),
			Score:        dto.FormatScore(submission),
			OccurredAt:   s.now().UTC(),
		})
	}

	s.cache.Invalidate(ctx, submission.StudentID)

	s.logger.Info().
		Str("action", action).
		Uint("submission_id", submission.ID).
		Uint("assignment_id", submission.AssignmentID).
		Uint("student_id", submission.StudentID).
		Str("status", string(submission.Status)).
		Msg("submission lifecycle write")
}
