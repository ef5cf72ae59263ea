package dto

import "time"

// GradebookEntry summarises one assigned piece of work for a student.
type GradebookEntry struct {
	AssignmentID   uint    `json:"assignment_id"`
	Title          string  `json:"title"`
	DueAt          *string `json:"due_at"`
	StudentDueAt   *string `json:"student_due_at"`
	EffectiveDueAt *string `json:"effective_due_at"`
	SubmissionID   *uint   `json:"submission_id"`
	Status         string  `json:"status"`
	Score          *string `json:"score"`
	ReviewNote     *string `json:"review_note"`
	Overdue        bool    `json:"overdue"`
}

// GradebookSummary aggregates counters across the gradebook entries.
type GradebookSummary struct {
	Assigned     int     `json:"assigned"`
	Drafts       int     `json:"drafts"`
	Submitted    int     `json:"submitted"`
	Graded       int     `json:"graded"`
	Missing      int     `json:"missing"`
	AverageScore *string `json:"average_score"`
}

// GradebookResponse is the per-student gradebook view.
type GradebookResponse struct {
	StudentID   uint             `json:"student_id"`
	StudentName string           `json:"student_name"`
	Summary     GradebookSummary `json:"summary"`
	Entries     []GradebookEntry `json:"entries"`
	GeneratedAt time.Time        `json:"generated_at"`
	CacheHit    bool             `json:"cache_hit"`
}

// StudentDueRequest sets or clears a per-student deadline override.
type StudentDueRequest struct {
	DueAt *string `json:"due_at" validate:"omitempty,max=64"`
}

// RosterDueResponse reports the deadlines that now apply to a roster entry.
type RosterDueResponse struct {
	AssignmentID   uint    `json:"assignment_id"`
	StudentID      uint    `json:"student_id"`
	StudentDueAt   *string `json:"student_due_at"`
	EffectiveDueAt *string `json:"effective_due_at"`
}
