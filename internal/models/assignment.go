package models

import "time"

// Assignment is a piece of homework owned by a teacher.
type Assignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TeacherID   *uint      `gorm:"index" json:"teacher_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueAt       *time.Time `json:"due_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Teacher     *User      `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"teacher,omitempty"`
}

// HasOwner reports whether a teacher has been recorded for the assignment.
func (a Assignment) HasOwner() bool {
	return a.TeacherID != nil && *a.TeacherID != 0
}

// AssignmentStudent links a student to an assignment. DueAt overrides the
// assignment's global deadline for that student when set.
type AssignmentStudent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_assignment_student" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_assignment_student;index" json:"student_id"`
	DueAt        *time.Time `json:"due_at"`
	CreatedAt    time.Time  `json:"created_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
