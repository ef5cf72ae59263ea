package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/middleware"
	"github.com/noah-isme/mathla-api/internal/service"
	"github.com/noah-isme/mathla-api/internal/utils"
)

// RosterHandler lets the owning teacher move a single student's deadline.
type RosterHandler struct {
	service service.RosterService
	logger  zerolog.Logger
}

// NewRosterHandler creates a roster handler.
func NewRosterHandler(service service.RosterService, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service: service,
		logger:  logger.With().Str("component", "roster_handler").Logger(),
	}
}

// Register attaches roster routes to the assignments group.
func (h *RosterHandler) Register(router fiber.Router) {
	router.Put("/:id/students/:studentId/due", middleware.WithAuth(h.setStudentDue, middleware.AuthOptions{
		Roles: []string{middleware.AuthRoleTeacher},
	}))
}

func (h *RosterHandler) setStudentDue(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StudentDueRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SetStudentDue(requestContext(c), callerFromContext(c), assignmentID, studentID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "set student due")
	}

	return utils.SendSuccess(c, "student deadline updated", result)
}
