package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/repository"
)

// SubmissionGuard runs the precondition checks shared by mutating operations.
// Each check returns a *LifecycleError on violation.
type SubmissionGuard struct {
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	resolver    *DeadlineResolver
	now         func() time.Time
}

// NewSubmissionGuard wires a guard. now may be nil, in which case time.Now is used.
func NewSubmissionGuard(assignments repository.AssignmentRepository, roster repository.RosterRepository, resolver *DeadlineResolver, now func() time.Time) *SubmissionGuard {
	if now == nil {
		now = time.Now
	}
	return &SubmissionGuard{
		assignments: assignments,
		roster:      roster,
		resolver:    resolver,
		now:         now,
	}
}

// RequireAssigned fails unless the student is on the assignment roster.
func (g *SubmissionGuard) RequireAssigned(ctx context.Context, assignmentID, studentID uint) error {
	if assignmentID == 0 || studentID == 0 {
		return ErrRosterIDsRequired
	}

	ok, err := g.roster.Exists(ctx, assignmentID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAssigned
	}
	return nil
}

// RequireNotPastDeadline fails once now is strictly after the effective due
// instant. Assignments without a deadline always pass.
func (g *SubmissionGuard) RequireNotPastDeadline(ctx context.Context, assignmentID, studentID uint) error {
	dueAt, err := g.resolver.EffectiveDueAt(ctx, assignmentID, studentID)
	if err != nil {
		return err
	}
	if isPast(g.now(), dueAt) {
		return ErrDeadlinePassed
	}
	return nil
}

// RequireTeacherOwnsAssignment lets legacy assignments without an owner
// through and otherwise demands the caller's id match the owner.
func (g *SubmissionGuard) RequireTeacherOwnsAssignment(ctx context.Context, assignmentID, teacherID uint) error {
	assignment, err := g.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if !assignment.HasOwner() {
		return nil
	}
	if teacherID == 0 {
		return ErrTeacherIDMissing
	}
	if *assignment.TeacherID != teacherID {
		return ErrNotOwner
	}
	return nil
}

func isPast(now time.Time, dueAt *time.Time) bool {
	return dueAt != nil && now.After(*dueAt)
}
