package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/models"
)

func TestSubmissionStartIsIdempotent(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	req := dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID, TextAnswer: ptrString("x = 2")}

	first, created, err := f.svc.Start(ctx, f.studentCaller(), req)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, string(models.SubmissionStatusDraft), first.Status)
	require.Equal(t, "x = 2", first.TextAnswer)
	require.NotNil(t, first.AssignmentTitle)
	require.Equal(t, "Persamaan Linear", *first.AssignmentTitle)
	require.NotNil(t, first.StudentName)
	require.Equal(t, "Andi", *first.StudentName)
	require.NotNil(t, first.CreatedAt)
	require.Equal(t, "2025-01-05T00:00:00Z", *first.CreatedAt)

	second, created, err := f.svc.Start(ctx, f.studentCaller(), dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID, TextAnswer: ptrString("ignored")})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "x = 2", second.TextAnswer)
	require.EqualValues(t, 1, f.countSubmissions())
	require.EqualValues(t, 1, f.countActivity(ActionSubmissionStarted))
}

func TestSubmissionCreateAlwaysInserts(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	req := dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID}
	first, err := f.svc.Create(ctx, f.studentCaller(), req)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.studentCaller(), req)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.EqualValues(t, 2, f.countSubmissions())
	require.Equal(t, []string{ActionSubmissionCreated, ActionSubmissionCreated}, f.events.actions())
}

func TestSubmissionStartPreconditions(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	override := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, &override)
	ctx := context.Background()

	_, _, err := f.svc.Start(ctx, f.studentCaller(), dto.SubmissionStartRequest{StudentID: f.student.ID})
	require.ErrorIs(t, err, ErrIDsRequired)
	kind, _ := KindOf(err)
	require.Equal(t, KindBadRequest, kind)

	_, _, err = f.svc.Start(ctx, f.studentCaller(), dto.SubmissionStartRequest{AssignmentID: 9999, StudentID: f.student.ID})
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, _, err = f.svc.Start(ctx, f.teacherCaller(), dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: 9999})
	require.ErrorIs(t, err, ErrStudentNotFound)

	outsider := Caller{UserID: f.outsider.ID, Role: models.RoleStudent}
	_, _, err = f.svc.Start(ctx, outsider, dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.outsider.ID})
	require.ErrorIs(t, err, ErrNotAssigned)

	// Global deadline passed, but the roster override still allows it.
	_, created, err := f.svc.Start(ctx, f.studentCaller(), dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID})
	require.NoError(t, err)
	require.True(t, created)

	f.now = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Create(ctx, f.studentCaller(), dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID})
	require.ErrorIs(t, err, ErrDeadlinePassed)
	require.EqualValues(t, 1, f.countSubmissions())
}

func TestListAutoSubmitsDraftsExactlyOnce(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	items, err := f.svc.List(ctx, f.teacherCaller(), dto.SubmissionFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, string(models.SubmissionStatusDraft), items[0].Status)

	f.now = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)

	items, err = f.svc.List(ctx, f.teacherCaller(), dto.SubmissionFilter{AssignmentID: ptrUint(f.assignment.ID)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, string(models.SubmissionStatusSubmitted), items[0].Status)
	require.Equal(t, models.SubmissionStatusSubmitted, f.reload(draft.ID).Status)

	for i := 0; i < 2; i++ {
		items, err = f.svc.List(ctx, f.teacherCaller(), dto.SubmissionFilter{})
		require.NoError(t, err)
		require.Equal(t, string(models.SubmissionStatusSubmitted), items[0].Status)
	}

	require.EqualValues(t, 1, f.countActivity(ActionSubmissionAutoSubmitted))
	require.Equal(t, []string{ActionSubmissionAutoSubmitted}, f.events.actions())
}

func TestMaterializeDueTransitionsIsIdempotent(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	stale := []models.Submission{
		f.insertSubmission(models.SubmissionStatusDraft, ""),
		f.insertSubmission(models.SubmissionStatusDraft, ""),
		f.insertSubmission(models.SubmissionStatusGraded, "80"),
	}

	changed, err := f.svc.MaterializeDueTransitions(ctx, Caller{}, stale)
	require.NoError(t, err)
	require.Equal(t, 2, changed)

	// The same stale snapshot replayed does not write again.
	changed, err = f.svc.MaterializeDueTransitions(ctx, Caller{}, stale)
	require.NoError(t, err)
	require.Zero(t, changed)

	require.Equal(t, models.SubmissionStatusGraded, f.reload(stale[2].ID).Status)
	require.EqualValues(t, 2, f.countActivity(ActionSubmissionAutoSubmitted))
}

func TestMaterializeDueTransitionsHonoursStudentOverride(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	override := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, &override)

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	changed, err := f.svc.MaterializeDueTransitions(context.Background(), Caller{}, []models.Submission{draft})
	require.NoError(t, err)
	require.Zero(t, changed)
	require.Equal(t, models.SubmissionStatusDraft, f.reload(draft.ID).Status)
}

func TestListScopesStudentsToTheirOwnRows(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	own := f.insertSubmission(models.SubmissionStatusDraft, "")
	other := models.Submission{AssignmentID: f.assignment.ID, StudentID: f.outsider.ID, Status: models.SubmissionStatusDraft, CreatedAt: f.now}
	require.NoError(t, f.db.Omit("Assignment", "Student").Create(&other).Error)

	items, err := f.svc.List(ctx, f.studentCaller(), dto.SubmissionFilter{StudentID: ptrUint(f.outsider.ID)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, own.ID, items[0].ID)

	items, err = f.svc.List(ctx, f.teacherCaller(), dto.SubmissionFilter{TeacherID: ptrUint(f.teacher.ID)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, other.ID, items[0].ID)

	_, err = f.svc.Get(ctx, f.studentCaller(), other.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	view, err := f.svc.Get(ctx, f.teacherCaller(), other.ID)
	require.NoError(t, err)
	require.NotNil(t, view.StudentName)
	require.Equal(t, "budi@example.com", *view.StudentName)
}

func TestStudentUpdateRespectsDeadline(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	updated, err := f.svc.Update(ctx, f.studentCaller(), draft.ID, dto.SubmissionUpdateRequest{
		TextAnswer: ptrString("x = 5"),
		Status:     ptrString("submitted"),
	})
	require.NoError(t, err)
	require.Equal(t, "x = 5", updated.TextAnswer)
	require.Equal(t, string(models.SubmissionStatusSubmitted), updated.Status)

	_, err = f.svc.Update(ctx, f.studentCaller(), draft.ID, dto.SubmissionUpdateRequest{Status: ptrString("reviewed")})
	require.ErrorIs(t, err, ErrInvalidStatus)

	f.now = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Update(ctx, f.studentCaller(), draft.ID, dto.SubmissionUpdateRequest{TextAnswer: ptrString("late")})
	require.ErrorIs(t, err, ErrDeadlinePassed)
	require.Equal(t, "x = 5", f.reload(draft.ID).TextAnswer)
}

func TestTeacherUpdateShortcutsIgnoreDeadlineAndText(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	graded := f.insertSubmission(models.SubmissionStatusGraded, "90")

	undone, err := f.svc.Update(ctx, f.teacherCaller(), graded.ID, dto.SubmissionUpdateRequest{
		TextAnswer: ptrString("teacher edit"),
		Status:     ptrString("SUBMITTED"),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusSubmitted), undone.Status)
	require.Equal(t, "x = 4", undone.TextAnswer)
	require.NotNil(t, undone.Score)
	require.Equal(t, "90.00", *undone.Score)

	sentBack, err := f.svc.Update(ctx, f.teacherCaller(), graded.ID, dto.SubmissionUpdateRequest{Status: ptrString("Draft")})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusDraft), sentBack.Status)
	require.Nil(t, sentBack.Score)
	require.False(t, f.reload(graded.ID).Score.Valid)

	_, err = f.svc.Update(ctx, f.teacherCaller(), graded.ID, dto.SubmissionUpdateRequest{Status: ptrString("archived")})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestGradeAcceptsCommaDecimal(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)

	submitted := f.insertSubmission(models.SubmissionStatusSubmitted, "")

	graded, err := f.svc.Grade(context.Background(), f.teacherCaller(), submitted.ID, dto.GradeSubmissionRequest{
		Score:      ptrString("7,50"),
		ReviewNote: ptrString("<b>Bagus</b> sekali"),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusGraded), graded.Status)
	require.NotNil(t, graded.Score)
	require.Equal(t, "7.50", *graded.Score)
	require.NotNil(t, graded.ReviewNote)
	require.Equal(t, "Bagus sekali", *graded.ReviewNote)

	stored := f.reload(submitted.ID)
	require.Equal(t, models.SubmissionStatusGraded, stored.Status)
	require.True(t, stored.Score.Valid)
	require.Equal(t, "7.50", stored.Score.Decimal.StringFixed(2))
	require.EqualValues(t, 1, f.countActivity(ActionSubmissionGraded))
}

func TestGradeDraftBeforeDeadlineIsNotAllowed(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	_, err := f.svc.Grade(context.Background(), f.teacherCaller(), draft.ID, dto.GradeSubmissionRequest{
		Score:           ptrString("80"),
		TeacherOverride: ptrBool(true),
	})
	require.ErrorIs(t, err, ErrGradeNotAllowed)
	kind, _ := KindOf(err)
	require.Equal(t, KindForbidden, kind)

	stored := f.reload(draft.ID)
	require.Equal(t, models.SubmissionStatusDraft, stored.Status)
	require.False(t, stored.Score.Valid)
}

func TestGradeDraftAfterDeadlineWithOverride(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	_, err := f.svc.Grade(ctx, f.teacherCaller(), draft.ID, dto.GradeSubmissionRequest{Score: ptrString("60")})
	require.ErrorIs(t, err, ErrGradeNotAllowed)

	graded, err := f.svc.Grade(ctx, f.teacherCaller(), draft.ID, dto.GradeSubmissionRequest{
		Score:           ptrString("60"),
		TeacherOverride: ptrBool(true),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusGraded), graded.Status)
	require.Equal(t, "60.00", *graded.Score)
}

func TestGradeRetakeClearsScore(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	graded := f.insertSubmission(models.SubmissionStatusGraded, "75")

	retake, err := f.svc.Grade(ctx, f.teacherCaller(), graded.ID, dto.GradeSubmissionRequest{
		Status:     ptrString(" draft "),
		Score:      ptrString("99"),
		ReviewNote: ptrString("coba lagi"),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusDraft), retake.Status)
	require.Nil(t, retake.Score)
	require.Equal(t, "coba lagi", *retake.ReviewNote)

	stored := f.reload(graded.ID)
	require.Equal(t, models.SubmissionStatusDraft, stored.Status)
	require.False(t, stored.Score.Valid)
	require.True(t, f.now.Equal(stored.CreatedAt))
	require.EqualValues(t, 1, f.countActivity(ActionSubmissionRetake))
}

func TestGradeWithoutStatusOrScoreOnGradedIsRetake(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)

	graded := f.insertSubmission(models.SubmissionStatusGraded, "75")

	result, err := f.svc.Grade(context.Background(), f.teacherCaller(), graded.ID, dto.GradeSubmissionRequest{})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusDraft), result.Status)
	require.Nil(t, result.Score)
}

func TestRegradeKeepsScoreWhenOnlyNoteChanges(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)

	graded := f.insertSubmission(models.SubmissionStatusGraded, "75")

	result, err := f.svc.Grade(context.Background(), f.teacherCaller(), graded.ID, dto.GradeSubmissionRequest{
		Status:     ptrString("GRADED"),
		ReviewNote: ptrString("nilai dikonfirmasi"),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusGraded), result.Status)
	require.Equal(t, "75.00", *result.Score)
}

func TestGradeOwnershipAndScoreValidation(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	submitted := f.insertSubmission(models.SubmissionStatusSubmitted, "")

	_, err := f.svc.Grade(ctx, Caller{UserID: f.outsider.ID, Role: models.RoleTeacher}, submitted.ID, dto.GradeSubmissionRequest{Score: ptrString("80")})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Grade(ctx, Caller{Role: models.RoleTeacher}, submitted.ID, dto.GradeSubmissionRequest{Score: ptrString("80")})
	require.ErrorIs(t, err, ErrTeacherIDMissing)

	_, err = f.svc.Grade(ctx, f.teacherCaller(), submitted.ID, dto.GradeSubmissionRequest{Score: ptrString("delapan")})
	require.ErrorIs(t, err, ErrInvalidScore)

	stored := f.reload(submitted.ID)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
	require.False(t, stored.Score.Valid)

	_, err = f.svc.Grade(ctx, f.teacherCaller(), 9999, dto.GradeSubmissionRequest{Score: ptrString("80")})
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestGradeMissingCreatesOneGradedSubmission(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)

	result, err := f.svc.GradeMissing(context.Background(), f.teacherCaller(), dto.GradeMissingRequest{
		AssignmentID:    f.assignment.ID,
		StudentID:       f.student.ID,
		TeacherOverride: ptrBool(true),
	})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusGraded), result.Status)
	require.NotNil(t, result.Score)
	require.Equal(t, "1.00", *result.Score)
	require.NotNil(t, result.ReviewNote)
	require.Equal(t, DefaultMissingReviewNote, *result.ReviewNote)
	require.Empty(t, result.TextAnswer)
	require.EqualValues(t, 1, f.countSubmissions())

	stored := f.reload(result.ID)
	require.True(t, stored.Score.Decimal.Equal(defaultMissingScore))
	require.EqualValues(t, 1, f.countActivity(ActionSubmissionGradedMissing))
}

func TestGradeMissingReusesLatestSubmission(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)

	f.insertSubmission(models.SubmissionStatusDraft, "")
	latest := f.insertSubmission(models.SubmissionStatusDraft, "")

	result, err := f.svc.GradeMissing(context.Background(), f.teacherCaller(), dto.GradeMissingRequest{
		AssignmentID:    f.assignment.ID,
		StudentID:       f.student.ID,
		Score:           ptrString("12,5"),
		ReviewNote:      ptrString("  "),
		TeacherOverride: ptrBool(true),
	})
	require.NoError(t, err)
	require.Equal(t, latest.ID, result.ID)
	require.Equal(t, "12.50", *result.Score)
	require.Equal(t, DefaultMissingReviewNote, *result.ReviewNote)
	require.EqualValues(t, 2, f.countSubmissions())
}

func TestGradeMissingRequiresOverrideAfterDeadline(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	req := dto.GradeMissingRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID, TeacherOverride: ptrBool(true)}

	_, err := f.svc.GradeMissing(ctx, f.teacherCaller(), req)
	require.ErrorIs(t, err, ErrOverrideRequired)

	f.now = time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	req.TeacherOverride = nil
	_, err = f.svc.GradeMissing(ctx, f.teacherCaller(), req)
	require.ErrorIs(t, err, ErrOverrideRequired)

	req.TeacherOverride = ptrBool(true)
	req.StudentID = f.outsider.ID
	_, err = f.svc.GradeMissing(ctx, f.teacherCaller(), req)
	require.ErrorIs(t, err, ErrNotAssigned)

	_, err = f.svc.GradeMissing(ctx, Caller{UserID: f.outsider.ID, Role: models.RoleTeacher}, req)
	require.ErrorIs(t, err, ErrNotOwner)

	req.StudentID = f.student.ID
	req.Score = ptrString("abc")
	_, err = f.svc.GradeMissing(ctx, f.teacherCaller(), req)
	require.ErrorIs(t, err, ErrInvalidScore)

	require.Zero(t, f.countSubmissions())
}

func TestDeleteRestrictsStudentsToOwnRows(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	submission := f.insertSubmission(models.SubmissionStatusDraft, "")

	err := f.svc.Delete(ctx, Caller{UserID: f.outsider.ID, Role: models.RoleStudent}, submission.ID, nil)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	err = f.svc.Delete(ctx, f.teacherCaller(), submission.ID, ptrUint(f.outsider.ID))
	require.ErrorIs(t, err, ErrSubmissionNotFound)
	require.EqualValues(t, 1, f.countSubmissions())

	require.NoError(t, f.svc.Delete(ctx, f.studentCaller(), submission.ID, nil))
	require.Zero(t, f.countSubmissions())

	err = f.svc.Delete(ctx, f.teacherCaller(), submission.ID, nil)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestLifecycleEventsReachStudentAndTeacher(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)

	submitted := f.insertSubmission(models.SubmissionStatusSubmitted, "")
	_, err := f.svc.Grade(context.Background(), f.teacherCaller(), submitted.ID, dto.GradeSubmissionRequest{Score: ptrString("88")})
	require.NoError(t, err)

	require.Len(t, f.events.events, 1)
	event := f.events.events[0]
	require.Equal(t, ActionSubmissionGraded, event.Action)
	require.Equal(t, []uint{f.student.ID, f.teacher.ID}, event.Recipients())
	require.Equal(t, "88.00", *event.Score)
}

func TestStudentWritesAreScopedToOwnRows(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()
	outsider := Caller{UserID: f.outsider.ID, Role: models.RoleStudent}

	draft := f.insertSubmission(models.SubmissionStatusDraft, "")

	_, err := f.svc.Update(ctx, outsider, draft.ID, dto.SubmissionUpdateRequest{
		TextAnswer: ptrString("ditimpa"),
		Status:     ptrString("GRADED"),
	})
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	stored := f.reload(draft.ID)
	require.Equal(t, models.SubmissionStatusDraft, stored.Status)
	require.NotEqual(t, "ditimpa", stored.TextAnswer)

	_, err = f.svc.Create(ctx, outsider, dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID})
	require.ErrorIs(t, err, ErrNotOwner)

	_, _, err = f.svc.Start(ctx, outsider, dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID})
	require.ErrorIs(t, err, ErrNotOwner)
	require.EqualValues(t, 1, f.countSubmissions())

	// teachers may still start work on a student's behalf
	_, created, err := f.svc.Start(ctx, f.teacherCaller(), dto.SubmissionStartRequest{AssignmentID: f.assignment.ID, StudentID: f.student.ID})
	require.NoError(t, err)
	require.False(t, created)
}

func TestGradeRejectsStudentsAndBorrowedTeacherIDs(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	submitted := f.insertSubmission(models.SubmissionStatusSubmitted, "")
	req := dto.GradeSubmissionRequest{Score: ptrString("100"), TeacherID: ptrUint(f.teacher.ID)}

	_, err := f.svc.Grade(ctx, f.studentCaller(), submitted.ID, req)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Grade(ctx, Caller{UserID: f.outsider.ID, Role: models.RoleTeacher}, submitted.ID, req)
	require.ErrorIs(t, err, ErrNotOwner)

	stored := f.reload(submitted.ID)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
	require.False(t, stored.Score.Valid)
	require.Zero(t, f.countActivity(ActionSubmissionGraded))

	result, err := f.svc.Grade(ctx, f.teacherCaller(), submitted.ID, req)
	require.NoError(t, err)
	require.Equal(t, "100.00", *result.Score)
}

func TestGradeMissingRejectsBorrowedTeacherID(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, &due, nil)
	ctx := context.Background()

	req := dto.GradeMissingRequest{
		AssignmentID:    f.assignment.ID,
		StudentID:       f.student.ID,
		TeacherOverride: ptrBool(true),
		TeacherID:       ptrUint(f.teacher.ID),
	}

	_, err := f.svc.GradeMissing(ctx, Caller{UserID: f.outsider.ID, Role: models.RoleTeacher}, req)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.GradeMissing(ctx, f.studentCaller(), req)
	require.ErrorIs(t, err, ErrNotOwner)
	require.Zero(t, f.countSubmissions())
}

func TestRegradeWithBlankNoteKeepsStoredNote(t *testing.T) {
	f := newLifecycleFixture(t, nil, nil)
	ctx := context.Background()

	graded := f.insertSubmission(models.SubmissionStatusGraded, "75")
	require.NoError(t, f.db.Model(&models.Submission{}).Where("id = ?", graded.ID).Update("review_note", "Bagus").Error)

	for _, note := range []string{"", "   ", "<b></b>"} {
		result, err := f.svc.Grade(ctx, f.teacherCaller(), graded.ID, dto.GradeSubmissionRequest{
			Score:      ptrString("80"),
			ReviewNote: ptrString(note),
		})
		require.NoError(t, err)
		require.NotNil(t, result.ReviewNote, "note %q", note)
		require.Equal(t, "Bagus", *result.ReviewNote)
	}

	require.Equal(t, "Bagus", *f.reload(graded.ID).ReviewNote)
}
