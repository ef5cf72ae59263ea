package service

import (
	"strings"

	"github.com/noah-isme/mathla-api/internal/models"
)

// Caller is the verified identity attached to a request by the auth layer.
type Caller struct {
	UserID uint
	Role   string
}

// IsTeacher reports whether the caller acts with teacher privileges.
func (c Caller) IsTeacher() bool {
	return strings.EqualFold(strings.TrimSpace(c.Role), models.RoleTeacher)
}

// IsStudent reports whether the caller is a student.
func (c Caller) IsStudent() bool {
	return strings.EqualFold(strings.TrimSpace(c.Role), models.RoleStudent)
}

// Anonymous reports whether no user id was attached to the request.
func (c Caller) Anonymous() bool {
	return c.UserID == 0
}

func (c Caller) activityRole() string {
	return normalizeRole(c.Role)
}
