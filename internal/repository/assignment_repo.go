package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/models"
)

// AssignmentRepository exposes the read side of assignments used by the
// submission lifecycle.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

// RosterRepository accesses assignment↔student links.
type RosterRepository interface {
	Get(ctx context.Context, assignmentID, studentID uint) (models.AssignmentStudent, error)
	Exists(ctx context.Context, assignmentID, studentID uint) (bool, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.AssignmentStudent, error)
	UpdateDue(ctx context.Context, assignmentID, studentID uint, dueAt *time.Time) error
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository instantiates the roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) Get(ctx context.Context, assignmentID, studentID uint) (models.AssignmentStudent, error) {
	var link models.AssignmentStudent
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&link).Error; err != nil {
		return models.AssignmentStudent{}, err
	}

	return link, nil
}

func (r *rosterRepository) Exists(ctx context.Context, assignmentID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AssignmentStudent{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *rosterRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.AssignmentStudent, error) {
	var links []models.AssignmentStudent
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		Where("student_id = ?", studentID).
		Order("id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}

	return links, nil
}

// UpdateDue sets or clears the per-student deadline override.
func (r *rosterRepository) UpdateDue(ctx context.Context, assignmentID, studentID uint, dueAt *time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.AssignmentStudent{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Update("due_at", dueAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
