package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mathla-api/internal/config"
	"github.com/noah-isme/mathla-api/internal/database"
	"github.com/noah-isme/mathla-api/internal/handler"
	"github.com/noah-isme/mathla-api/internal/models"
	"github.com/noah-isme/mathla-api/internal/repository"
	"github.com/noah-isme/mathla-api/internal/router"
	"github.com/noah-isme/mathla-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Meta    json.RawMessage `json:"meta"`
}

// lifecycleApp is a fully wired API over sqlite. The open assignment is due in
// two days and the closed one was due two days ago; the student is on both
// rosters, the classmate only on the open one.
type lifecycleApp struct {
	app       *fiber.App
	db        *gorm.DB
	events    service.SubmissionEventBus
	teacher   models.User
	student   models.User
	classmate models.User
	open      models.Assignment
	closed    models.Assignment
}

// fakeJWT stands in for token verification: identity comes from test headers.
func fakeJWT(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", uint(id))
		c.Locals("user_role", c.Get("X-Test-Role"))
	}
	return c.Next()
}

func setupLifecycleApp(t *testing.T) *lifecycleApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	env := &lifecycleApp{
		db:        db,
		teacher:   models.User{Name: "Bu Sari", Email: "sari@example.com", Role: models.RoleTeacher},
		student:   models.User{Name: "Andi", Email: "andi@example.com", Role: models.RoleStudent},
		classmate: models.User{Name: "Budi", Email: "budi@example.com", Role: models.RoleStudent},
	}
	for _, user := range []*models.User{&env.teacher, &env.student, &env.classmate} {
		require.NoError(t, db.Create(user).Error)
	}

	future := time.Now().Add(48 * time.Hour).UTC()
	past := time.Now().Add(-48 * time.Hour).UTC()
	env.open = models.Assignment{TeacherID: &env.teacher.ID, Title: "Persamaan Linear", DueAt: &future}
	env.closed = models.Assignment{TeacherID: &env.teacher.ID, Title: "Statistika", DueAt: &past}
	require.NoError(t, db.Omit(clause.Associations).Create(&env.open).Error)
	require.NoError(t, db.Omit(clause.Associations).Create(&env.closed).Error)

	for _, link := range []models.AssignmentStudent{
		{AssignmentID: env.open.ID, StudentID: env.student.ID},
		{AssignmentID: env.closed.ID, StudentID: env.student.ID},
		{AssignmentID: env.open.ID, StudentID: env.classmate.ID},
	} {
		link := link
		require.NoError(t, db.Omit(clause.Associations).Create(&link).Error)
	}

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)

	env.events = service.NewSubmissionEventBus(nil, "", nil, logger)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions: submissionRepo,
		Assignments: assignmentRepo,
		Roster:      rosterRepo,
		Users:       userRepo,
		Activity:    activityService,
		Events:      env.events,
		Validator:   validate,
		Logger:      logger,
	})
	gradebookService := service.NewGradebookService(userRepo, rosterRepo, submissionRepo, submissionService, nil, logger)
	rosterService := service.NewRosterService(assignmentRepo, rosterRepo, activityService, nil, validate, logger)

	env.app = fiber.New()
	router.Register(env.app, config.Config{AppName: "Mathla Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler:     handler.NewSubmissionHandler(submissionService, activityService, logger),
		SubmissionFeedHandler: handler.NewSubmissionFeedHandler(env.events, logger),
		GradebookHandler:      handler.NewGradebookHandler(gradebookService, logger),
		RosterHandler:         handler.NewRosterHandler(rosterService, logger),
		JWTMiddleware:         fakeJWT,
	})

	return env
}

func (env *lifecycleApp) do(t *testing.T, method, path string, body interface{}, as *models.User) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(as.ID), 10))
		req.Header.Set("X-Test-Role", as.Role)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (env *lifecycleApp) insertSubmission(t *testing.T, assignment models.Assignment, student models.User, status models.SubmissionStatus) models.Submission {
	t.Helper()

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		TextAnswer:   "x = 4",
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, env.db.Omit(clause.Associations).Create(&submission).Error)
	return submission
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()

	var body envelope
	decodeResponse(t, resp, &body)
	if data != nil && len(body.Data) > 0 {
		require.NoError(t, json.Unmarshal(body.Data, data))
	}
	return body
}

func idPath(prefix string, id uint) string {
	return prefix + "/" + strconv.FormatUint(uint64(id), 10)
}
