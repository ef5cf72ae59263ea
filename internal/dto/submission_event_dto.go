package dto

import "time"

// SubmissionEvent is pushed to websocket subscribers and peer nodes whenever a
// submission changes state.
type SubmissionEvent struct {
	Action       string    `json:"action"`
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	TeacherID    *uint     `json:"teacher_id,omitempty"`
	Status       string    `json:"status"`
	Score        *string   `json:"score"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Recipients lists the user ids that should receive the event.
func (e SubmissionEvent) Recipients() []uint {
	recipients := []uint{e.StudentID}
	if e.TeacherID != nil && *e.TeacherID != 0 && *e.TeacherID != e.StudentID {
		recipients = append(recipients, *e.TeacherID)
	}
	return recipients
}
