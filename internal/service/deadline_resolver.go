package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/repository"
)

// DeadlineResolver computes the due instant that applies to one student.
type DeadlineResolver struct {
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
}

// NewDeadlineResolver constructs a resolver over the assignment and roster stores.
func NewDeadlineResolver(assignments repository.AssignmentRepository, roster repository.RosterRepository) *DeadlineResolver {
	return &DeadlineResolver{assignments: assignments, roster: roster}
}

// EffectiveDueAt returns the roster override when one is set, otherwise the
// assignment's own deadline. A nil result means there is no deadline.
func (r *DeadlineResolver) EffectiveDueAt(ctx context.Context, assignmentID, studentID uint) (*time.Time, error) {
	assignment, err := r.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	link, err := r.roster.Get(ctx, assignmentID, studentID)
	switch {
	case err == nil:
		if link.DueAt != nil {
			return link.DueAt, nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}

	return assignment.DueAt, nil
}
