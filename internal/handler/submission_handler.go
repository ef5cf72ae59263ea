package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/middleware"
	"github.com/noah-isme/mathla-api/internal/models"
	"github.com/noah-isme/mathla-api/internal/service"
	"github.com/noah-isme/mathla-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service  service.SubmissionService
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, activity service.ActivityService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:  service,
		activity: activity,
		logger:   logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	authorOrTeacher := middleware.RequireRole(models.RoleStudent, models.RoleTeacher)
	teacherOnly := middleware.RequireRole(models.RoleTeacher)

	router.Get("", h.list)
	router.Post("", authorOrTeacher, h.create)
	router.Post("/start", authorOrTeacher, h.start)
	router.Post("/grade-missing", teacherOnly, h.gradeMissing)
	router.Get("/:id", h.get)
	router.Put("/:id", authorOrTeacher, h.update)
	router.Put("/:id/grade", teacherOnly, h.grade)
	router.Delete("/:id", authorOrTeacher, h.delete)
	router.Get("/:id/activity", teacherOnly, h.activityLog)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	var payload dto.SubmissionStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, created, err := h.service.Start(requestContext(c), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "start submission")
	}

	if !created {
		return utils.SendSuccess(c, "submission already started", submission)
	}

	c.Location("/api/v1/submissions/" + strconv.FormatUint(uint64(submission.ID), 10))
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission started", submission)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Create(requestContext(c), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "create submission")
	}

	c.Location("/api/v1/submissions/" + strconv.FormatUint(uint64(submission.ID), 10))
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter := dto.SubmissionFilter{}
	for key, target := range map[string]**uint{
		"student_id":    &filter.StudentID,
		"assignment_id": &filter.AssignmentID,
		"teacher_id":    &filter.TeacherID,
	} {
		value, err := parseQueryUint(c, key)
		if err != nil {
			return utils.SendFailure(c, fiber.StatusBadRequest, "INVALID_QUERY", err.Error())
		}
		*target = value
	}

	submissions, err := h.service.List(requestContext(c), callerFromContext(c), filter)
	if err != nil {
		return respondError(c, h.logger, err, "list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(requestContext(c), callerFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "get submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Update(requestContext(c), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "update submission")
	}

	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Grade(requestContext(c), callerFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "grade submission")
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) gradeMissing(c *fiber.Ctx) error {
	var payload dto.GradeMissingRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.GradeMissing(requestContext(c), callerFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "grade missing work")
	}

	c.Location("/api/v1/submissions/" + strconv.FormatUint(uint64(submission.ID), 10))
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "missing work graded", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendFailure(c, fiber.StatusBadRequest, "INVALID_QUERY", err.Error())
	}

	if err := h.service.Delete(requestContext(c), callerFromContext(c), id, studentID); err != nil {
		return respondError(c, h.logger, err, "delete submission")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SubmissionHandler) activityLog(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	result, err := h.activity.List(requestContext(c), dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		EntityType: "submission",
		EntityID:   id,
	})
	if err != nil {
		return respondError(c, h.logger, err, "list submission activity")
	}

	return utils.OK(c, result.Items, "submission activity retrieved", result.Pagination)
}
