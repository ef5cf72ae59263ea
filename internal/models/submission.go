package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionStatus enumerates the lifecycle states of a submission.
type SubmissionStatus string

const (
	// SubmissionStatusDraft is the editable state a submission is born in.
	SubmissionStatusDraft SubmissionStatus = "DRAFT"
	// SubmissionStatusSubmitted waits in the teacher's grading queue.
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	// SubmissionStatusGraded carries a final score.
	SubmissionStatusGraded SubmissionStatus = "GRADED"

	// SubmissionStatusReviewed and SubmissionStatusRejected are reserved; no
	// transition produces them.
	SubmissionStatusReviewed SubmissionStatus = "REVIEWED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// ScoreScale is the number of fractional digits kept by the score column.
const ScoreScale = 2

// ErrUnknownStatus is returned by ParseSubmissionStatus.
var ErrUnknownStatus = errors.New("unknown submission status")

// ParseSubmissionStatus maps free-form input onto a reachable status.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	switch SubmissionStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case SubmissionStatusDraft:
		return SubmissionStatusDraft, nil
	case SubmissionStatusSubmitted:
		return SubmissionStatusSubmitted, nil
	case SubmissionStatusGraded:
		return SubmissionStatusGraded, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// Submission is a student's answer to an assignment.
type Submission struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	AssignmentID uint                `gorm:"not null;index" json:"assignment_id"`
	StudentID    uint                `gorm:"not null;index" json:"student_id"`
	TextAnswer   string              `gorm:"type:text" json:"text_answer"`
	Score        decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"score"`
	Status       SubmissionStatus    `gorm:"size:16;not null;default:DRAFT;index" json:"status"`
	ReviewNote   *string             `gorm:"size:1000" json:"review_note"`
	CreatedAt    time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Assignment   Assignment          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student      User                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsDraft reports whether the submission is still editable by the student.
func (s Submission) IsDraft() bool {
	return s.Status == SubmissionStatusDraft
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
