package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/repository"
)

// RosterService edits per-student deadline overrides.
type RosterService interface {
	SetStudentDue(ctx context.Context, caller Caller, assignmentID, studentID uint, req dto.StudentDueRequest) (dto.RosterDueResponse, error)
}

type rosterService struct {
	roster    repository.RosterRepository
	resolver  *DeadlineResolver
	guard     *SubmissionGuard
	activity  ActivityRecorder
	cache     *GradebookCache
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRosterService constructs the roster deadline service.
func NewRosterService(assignments repository.AssignmentRepository, roster repository.RosterRepository, activity ActivityRecorder, cache *GradebookCache, validate *validator.Validate, logger zerolog.Logger) RosterService {
	resolver := NewDeadlineResolver(assignments, roster)
	return &rosterService{
		roster:    roster,
		resolver:  resolver,
		guard:     NewSubmissionGuard(assignments, roster, resolver, nil),
		activity:  activity,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "roster_service").Logger(),
	}
}

func (s *rosterService) SetStudentDue(ctx context.Context, caller Caller, assignmentID, studentID uint, req dto.StudentDueRequest) (dto.RosterDueResponse, error) {
	if s.validator != nil {
		if err := s.validator.Struct(req); err != nil {
			return dto.RosterDueResponse{}, err
		}
	}
	if assignmentID == 0 || studentID == 0 {
		return dto.RosterDueResponse{}, ErrIDsRequired
	}

	if err := s.guard.RequireTeacherOwnsAssignment(ctx, assignmentID, caller.UserID); err != nil {
		return dto.RosterDueResponse{}, err
	}

	var dueAt *time.Time
	if req.DueAt != nil && strings.TrimSpace(*req.DueAt) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.DueAt))
		if err != nil {
			return dto.RosterDueResponse{}, ErrInvalidDueAt
		}
		dueAt = &parsed
	}

	if err := s.roster.UpdateDue(ctx, assignmentID, studentID, dueAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RosterDueResponse{}, ErrRosterEntryNotFound
		}
		return dto.RosterDueResponse{}, err
	}

	effective, err := s.resolver.EffectiveDueAt(ctx, assignmentID, studentID)
	if err != nil {
		return dto.RosterDueResponse{}, err
	}

	s.cache.Invalidate(ctx, studentID)

	if s.activity != nil {
		metadata := map[string]interface{}{
			"assignment_id": assignmentID,
			"student_id":    studentID,
			"due_at":        dto.FormatInstant(dueAt),
		}
		if _, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    caller.UserID,
			ActorRole:  caller.activityRole(),
			Action:     ActionRosterDueUpdated,
			EntityType: entityRoster,
			Metadata:   metadata,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record roster activity")
		}
	}

	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Uint("student_id", studentID).
		Bool("cleared", dueAt == nil).
		Msg("student deadline updated")

	return dto.RosterDueResponse{
		AssignmentID:   assignmentID,
		StudentID:      studentID,
		StudentDueAt:   dto.FormatInstant(dueAt),
		EffectiveDueAt: dto.FormatInstant(effective),
	}, nil
}
