package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/models"
)

// SubmissionFilter selects one listing scope. The first non-nil field wins in
// the order StudentID, AssignmentID, TeacherID; all nil lists everything.
type SubmissionFilter struct {
	StudentID    *uint
	AssignmentID *uint
	TeacherID    *uint
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	LatestForPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	MarkSubmittedIfDraft(ctx context.Context, id uint) (bool, error)
	Delete(ctx context.Context, id uint) error
	DeleteForStudent(ctx context.Context, id, studentID uint) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	switch {
	case filter.StudentID != nil:
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	case filter.AssignmentID != nil:
		query = query.Where("submissions.assignment_id = ?", *filter.AssignmentID)
	case filter.TeacherID != nil:
		query = query.
			Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
			Where("assignments.teacher_id = ?", *filter.TeacherID)
	}

	var submissions []models.Submission
	if err := query.Order("submissions.id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) LatestForPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Order("id DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Assignment", "Student").Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Assignment", "Student").Save(submission).Error
}

// MarkSubmittedIfDraft flips a draft to submitted and reports whether a row
// changed. The status predicate keeps repeated calls from writing twice.
func (r *submissionRepository) MarkSubmittedIfDraft(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusDraft).
		Update("status", models.SubmissionStatusSubmitted)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Submission{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepository) DeleteForStudent(ctx context.Context, id, studentID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND student_id = ?", id, studentID).
		Delete(&models.Submission{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
