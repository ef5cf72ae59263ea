package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mathla-api/internal/middleware"
	"github.com/noah-isme/mathla-api/internal/service"
	"github.com/noah-isme/mathla-api/internal/utils"
)

// GradebookHandler exposes the per-student gradebook.
type GradebookHandler struct {
	service service.GradebookService
	logger  zerolog.Logger
}

// NewGradebookHandler creates a new handler instance.
func NewGradebookHandler(service service.GradebookService, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		service: service,
		logger:  logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register attaches the gradebook endpoint to the students group.
func (h *GradebookHandler) Register(router fiber.Router) {
	router.Get("/:id/gradebook", middleware.WithAuth(h.getGradebook, middleware.AuthOptions{
		Roles: []string{middleware.AuthRoleStudent, middleware.AuthRoleTeacher},
	}))
}

func (h *GradebookHandler) getGradebook(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	gradebook, err := h.service.GetGradebook(requestContext(c), callerFromContext(c), studentID)
	if err != nil {
		return respondError(c, h.logger, err, "load gradebook")
	}

	return utils.SendSuccess(c, "gradebook retrieved", gradebook)
}
