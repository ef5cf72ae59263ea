package dto

import (
	"time"

	"github.com/noah-isme/mathla-api/internal/models"
)

const isoLayout = time.RFC3339

// SubmissionStartRequest is shared by the start and create endpoints.
type SubmissionStartRequest struct {
	AssignmentID uint    `json:"assignment_id"`
	StudentID    uint    `json:"student_id"`
	TextAnswer   *string `json:"text_answer" validate:"omitempty,max=100000"`
}

// SubmissionUpdateRequest carries a student edit or a teacher status change.
type SubmissionUpdateRequest struct {
	TextAnswer *string `json:"text_answer" validate:"omitempty,max=100000"`
	Status     *string `json:"status" validate:"omitempty,max=32"`
}

// GradeSubmissionRequest is sent by a teacher grading or sending back a submission.
type GradeSubmissionRequest struct {
	Score           *string `json:"score" validate:"omitempty,max=32"`
	Status          *string `json:"status" validate:"omitempty,max=32"`
	ReviewNote      *string `json:"review_note" validate:"omitempty,max=1000"`
	TeacherOverride *bool   `json:"teacher_override"`
	TeacherID       *uint   `json:"teacher_id"`
}

// GradeMissingRequest grades a student who never handed anything in.
type GradeMissingRequest struct {
	AssignmentID    uint    `json:"assignment_id"`
	StudentID       uint    `json:"student_id"`
	Score           *string `json:"score" validate:"omitempty,max=32"`
	ReviewNote      *string `json:"review_note" validate:"omitempty,max=1000"`
	TeacherOverride *bool   `json:"teacher_override"`
	TeacherID       *uint   `json:"teacher_id"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	StudentID    *uint `query:"student_id"`
	AssignmentID *uint `query:"assignment_id"`
	TeacherID    *uint `query:"teacher_id"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID              uint    `json:"id"`
	AssignmentID    uint    `json:"assignment_id"`
	AssignmentTitle *string `json:"assignment_title"`
	StudentID       uint    `json:"student_id"`
	StudentName     *string `json:"student_name"`
	TextAnswer      string  `json:"text_answer"`
	Score           *string `json:"score"`
	Status          string  `json:"status"`
	CreatedAt       *string `json:"created_at"`
	ReviewNote      *string `json:"review_note"`
}

// NewSubmissionResponse converts a Submission model into a DTO. Joined
// assignment and student fields are only rendered when they were loaded.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		TextAnswer:   model.TextAnswer,
		Status:       string(model.Status),
		ReviewNote:   model.ReviewNote,
		Score:        FormatScore(model),
	}

	if model.Assignment.ID != 0 {
		title := model.Assignment.Title
		response.AssignmentTitle = &title
	}

	if model.Student.ID != 0 {
		name := model.Student.DisplayName()
		response.StudentName = &name
	}

	if !model.CreatedAt.IsZero() {
		created := model.CreatedAt.Format(isoLayout)
		response.CreatedAt = &created
	}

	return response
}

// FormatScore renders the score with the column's fixed scale, or nil.
func FormatScore(model models.Submission) *string {
	if !model.Score.Valid {
		return nil
	}
	formatted := model.Score.Decimal.StringFixed(models.ScoreScale)
	return &formatted
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// FormatInstant renders an optional instant as RFC 3339 with offset.
func FormatInstant(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format(isoLayout)
	return &formatted
}
