package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mathla-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Assignment{},
		&models.AssignmentStudent{},
		&models.Submission{},
		&models.ActivityLog{},
	))
	return db
}

type seeded struct {
	teacher    models.User
	student    models.User
	classmate  models.User
	assignment models.Assignment
	other      models.Assignment
}

func seed(t *testing.T, db *gorm.DB) seeded {
	t.Helper()

	s := seeded{
		teacher:   models.User{Name: "Bu Sari", Email: "sari@example.com", Role: models.RoleTeacher},
		student:   models.User{Name: "Andi", Email: "andi@example.com", Role: models.RoleStudent},
		classmate: models.User{Name: "Budi", Email: "budi@example.com", Role: models.RoleStudent},
	}
	for _, user := range []*models.User{&s.teacher, &s.student, &s.classmate} {
		require.NoError(t, db.Create(user).Error)
	}

	s.assignment = models.Assignment{TeacherID: &s.teacher.ID, Title: "Persamaan Linear"}
	s.other = models.Assignment{Title: "Tanpa pemilik"}
	require.NoError(t, db.Omit(clause.Associations).Create(&s.assignment).Error)
	require.NoError(t, db.Omit(clause.Associations).Create(&s.other).Error)

	return s
}
