package service

import "errors"

// ErrorKind groups lifecycle failures by how the caller should react.
type ErrorKind string

const (
	KindBadRequest ErrorKind = "bad_request"
	KindForbidden  ErrorKind = "forbidden"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
)

// LifecycleError is the typed failure raised by guards and lifecycle
// operations. Two errors match under errors.Is when their codes are equal, so
// a sentinel with a custom message still matches the bare sentinel.
type LifecycleError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *LifecycleError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is implements errors.Is matching on the reason code.
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of the error carrying a more specific message.
func (e *LifecycleError) WithMessage(message string) *LifecycleError {
	clone := *e
	clone.Message = message
	return &clone
}

// KindOf reports the kind of a lifecycle error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var lifecycleErr *LifecycleError
	if errors.As(err, &lifecycleErr) {
		return lifecycleErr.Kind, true
	}
	return "", false
}

var (
	ErrInvalidStatus = &LifecycleError{Kind: KindBadRequest, Code: "INVALID_STATUS", Message: "unknown submission status"}
	ErrInvalidScore  = &LifecycleError{Kind: KindBadRequest, Code: "INVALID_SCORE", Message: "score must be a decimal number"}
	ErrIDsRequired   = &LifecycleError{Kind: KindBadRequest, Code: "IDS_REQUIRED", Message: "assignment_id and student_id are required"}
	ErrInvalidDueAt  = &LifecycleError{Kind: KindBadRequest, Code: "INVALID_DUE_AT", Message: "due_at must be an RFC 3339 timestamp"}

	ErrRosterIDsRequired = &LifecycleError{Kind: KindForbidden, Code: "IDS_REQUIRED", Message: "assignment and student ids are required"}
	ErrNotAssigned       = &LifecycleError{Kind: KindForbidden, Code: "NOT_ASSIGNED", Message: "student is not assigned to this assignment"}
	ErrDeadlinePassed    = &LifecycleError{Kind: KindForbidden, Code: "DEADLINE_PASSED", Message: "the deadline for this assignment has passed"}
	ErrTeacherIDMissing  = &LifecycleError{Kind: KindForbidden, Code: "TEACHER_ID_MISSING", Message: "teacher id is required"}
	ErrNotOwner          = &LifecycleError{Kind: KindForbidden, Code: "NOT_OWNER", Message: "assignment belongs to another teacher"}
	ErrGradeNotAllowed   = &LifecycleError{Kind: KindForbidden, Code: "GRADE_NOT_ALLOWED", Message: "NEEDS_SUBMITTED or teacher_override=true after due date for DRAFT (or retake)"}
	ErrOverrideRequired  = &LifecycleError{Kind: KindForbidden, Code: "OVERRIDE_REQUIRED", Message: "teacher_override=true is required and the deadline must have passed"}

	ErrAssignmentNotFound  = &LifecycleError{Kind: KindNotFound, Code: "ASSIGNMENT_NOT_FOUND", Message: "assignment not found"}
	ErrSubmissionNotFound  = &LifecycleError{Kind: KindNotFound, Code: "SUBMISSION_NOT_FOUND", Message: "submission not found"}
	ErrStudentNotFound     = &LifecycleError{Kind: KindNotFound, Code: "STUDENT_NOT_FOUND", Message: "student not found"}
	ErrRosterEntryNotFound = &LifecycleError{Kind: KindNotFound, Code: "ROSTER_ENTRY_NOT_FOUND", Message: "student is not on the assignment roster"}
)
