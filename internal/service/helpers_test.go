package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mathla-api/internal/database"
	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/models"
	"github.com/noah-isme/mathla-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

func ptrTime(v time.Time) *time.Time {
	return &v
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.SubmissionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.SubmissionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]string, 0, len(p.events))
	for _, event := range p.events {
		actions = append(actions, event.Action)
	}
	return actions
}

// lifecycleFixture seeds one teacher, two students and one assignment with the
// first student on the roster. The clock is controlled through now.
type lifecycleFixture struct {
	t          *testing.T
	db         *gorm.DB
	svc        *submissionService
	events     *recordingPublisher
	teacher    models.User
	student    models.User
	outsider   models.User
	assignment models.Assignment
	now        time.Time
}

func newLifecycleFixture(t *testing.T, assignmentDue, studentDue *time.Time) *lifecycleFixture {
	t.Helper()

	db := newTestDB(t)
	f := &lifecycleFixture{
		t:      t,
		db:     db,
		events: &recordingPublisher{},
		now:    time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	f.teacher = models.User{Name: "Bu Sari", Email: "sari@example.com", Role: models.RoleTeacher}
	f.student = models.User{Name: "  Andi  ", Email: "andi@example.com", Role: models.RoleStudent}
	f.outsider = models.User{Name: "", Email: "budi@example.com", Role: models.RoleStudent}
	for _, user := range []*models.User{&f.teacher, &f.student, &f.outsider} {
		require.NoError(t, db.Create(user).Error)
	}

	f.assignment = models.Assignment{TeacherID: ptrUint(f.teacher.ID), Title: "Persamaan Linear", DueAt: assignmentDue}
	require.NoError(t, db.Omit(clause.Associations).Create(&f.assignment).Error)
	require.NoError(t, db.Omit(clause.Associations).Create(&models.AssignmentStudent{
		AssignmentID: f.assignment.ID,
		StudentID:    f.student.ID,
		DueAt:        studentDue,
	}).Error)

	svc := NewSubmissionService(SubmissionDependencies{
		Submissions: repository.NewSubmissionRepository(db),
		Assignments: repository.NewAssignmentRepository(db),
		Roster:      repository.NewRosterRepository(db),
		Users:       repository.NewUserRepository(db),
		Activity:    NewActivityService(repository.NewActivityLogRepository(db), testLogger()),
		Events:      f.events,
		Logger:      testLogger(),
	}).(*submissionService)
	svc.now = func() time.Time { return f.now }
	f.svc = svc

	return f
}

func (f *lifecycleFixture) teacherCaller() Caller {
	return Caller{UserID: f.teacher.ID, Role: models.RoleTeacher}
}

func (f *lifecycleFixture) studentCaller() Caller {
	return Caller{UserID: f.student.ID, Role: models.RoleStudent}
}

func (f *lifecycleFixture) insertSubmission(status models.SubmissionStatus, score string) models.Submission {
	f.t.Helper()

	submission := models.Submission{
		AssignmentID: f.assignment.ID,
		StudentID:    f.student.ID,
		TextAnswer:   "x = 4",
		Status:       status,
		CreatedAt:    f.now,
	}
	if score != "" {
		submission.Score = decimal.NewNullDecimal(decimal.RequireFromString(score))
	}
	require.NoError(f.t, f.db.Omit(clause.Associations).Create(&submission).Error)
	return submission
}

func (f *lifecycleFixture) reload(id uint) models.Submission {
	f.t.Helper()

	var submission models.Submission
	require.NoError(f.t, f.db.First(&submission, id).Error)
	return submission
}

func (f *lifecycleFixture) countSubmissions() int64 {
	f.t.Helper()

	var count int64
	require.NoError(f.t, f.db.Model(&models.Submission{}).Count(&count).Error)
	return count
}

func (f *lifecycleFixture) countActivity(action string) int64 {
	f.t.Helper()

	var count int64
	require.NoError(f.t, f.db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func startRequest(f *lifecycleFixture) dto.SubmissionStartRequest {
	return dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID}
}
