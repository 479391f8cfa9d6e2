package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/services/servicestest"
	"github.com/vnkhanh/e-course-backend/wizard"
)

const bucket = "course-content"

func newPublisher(t *testing.T) (*services.Publisher, *servicestest.Database, *servicestest.Storage) {
	t.Helper()
	db := servicestest.NewDatabase()
	st := servicestest.NewStorage()
	p := services.NewPublisher(db, st, bucket, nil)
	p.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	return p, db, st
}

// soilForm is the smallest valid course: one module with one lesson.
func soilForm(t *testing.T) *wizard.Form {
	t.Helper()
	f := wizard.NewForm(wizard.ModeCreate)
	f.Course.Title = "Soil 101"
	f.Course.Slug = "soil-101"
	f.Instructor.Name = "A. Farmer"
	m := f.AddModule()
	m.Title = "Intro"
	m.Duration = "1h 30m"
	l, err := f.AddLesson(m.ID)
	require.NoError(t, err)
	l.Title = "Welcome"
	l.Video = wizard.Asset{URL: "https://x/v.mp4"}
	return f
}

func TestPublishMinimalCourse(t *testing.T) {
	p, db, _ := newPublisher(t)

	res, err := p.Publish(context.Background(), soilForm(t))
	require.NoError(t, err)

	assert.Equal(t, services.Counts{Courses: 1, Instructors: 1, Modules: 1, Lessons: 1}, res.Counts)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Uploaded)

	var courses []models.Course
	db.Rows(services.TableCourses, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, res.CourseID, courses[0].ID)
	assert.Equal(t, "Soil 101", courses[0].Title)
	assert.Equal(t, models.StatusDraft, courses[0].Status)

	var instructors []models.Instructor
	db.Rows(services.TableInstructors, &instructors)
	require.Len(t, instructors, 1)
	assert.Equal(t, res.CourseID, instructors[0].CourseID)

	var modules []models.Module
	db.Rows(services.TableModules, &modules)
	require.Len(t, modules, 1)
	assert.Equal(t, 90, modules[0].Duration)
	assert.Equal(t, 1, modules[0].Position)

	var lessons []models.Lesson
	db.Rows(services.TableLessons, &lessons)
	require.Len(t, lessons, 1)
	assert.Equal(t, modules[0].ID, lessons[0].ModuleID)
	assert.Equal(t, models.LessonVideo, lessons[0].Type)
	assert.Equal(t, "https://x/v.mp4", lessons[0].VideoURL)
}

func TestPublishRejectsIncompleteForm(t *testing.T) {
	p, db, _ := newPublisher(t)

	_, err := p.Publish(context.Background(), wizard.NewForm(wizard.ModeCreate))
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"course title", "course slug", "instructor name", "at least one module"}, verr.Missing)
	assert.Zero(t, db.Count(services.TableCourses))
}

func TestUnknownModuleRefSavesNullLink(t *testing.T) {
	p, db, _ := newPublisher(t)
	f := soilForm(t)
	q := f.AddQuiz()
	q.Title = "Check"
	q.ModuleRef = "Nonexistent"
	a := f.AddAssignment()
	a.Title = "Dig"

	res, err := p.Publish(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Nonexistent")

	var quizzes []models.Quiz
	db.Rows(services.TableQuizzes, &quizzes)
	require.Len(t, quizzes, 1)
	assert.Nil(t, quizzes[0].ModuleID)

	// an empty ref is not a miss
	var assignments []models.Assignment
	db.Rows(services.TableAssignments, &assignments)
	require.Len(t, assignments, 1)
	assert.Nil(t, assignments[0].ModuleID)
}

func TestModuleRefResolutionOrder(t *testing.T) {
	p, db, _ := newPublisher(t)
	f := soilForm(t)
	tick := time.UnixMilli(1700000000000)
	f.SetClock(func() time.Time { tick = tick.Add(time.Millisecond); return tick })

	second := f.AddModule()
	second.Title = "0" // a title that looks like an index
	third := f.AddModule()
	third.Title = "Intro" // duplicate of the first module's title

	refs := []string{
		second.ID,   // stable id
		"Intro",     // title, first registration wins
		third.Token, // token
		"2",         // 0-based index
		"0",         // title "0" beats index 0
		"7",         // out of range
	}
	for _, ref := range refs {
		q := f.AddQuiz()
		q.Title = "ref " + ref
		q.ModuleRef = ref
	}

	res, err := p.Publish(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"7"`)

	var modules []models.Module
	db.Rows(services.TableModules, &modules)
	require.Len(t, modules, 3)

	var quizzes []models.Quiz
	db.Rows(services.TableQuizzes, &quizzes)
	require.Len(t, quizzes, len(refs))

	want := []*int64{&modules[1].ID, &modules[0].ID, &modules[2].ID, &modules[2].ID, &modules[1].ID, nil}
	for i, q := range quizzes {
		if want[i] == nil {
			assert.Nil(t, q.ModuleID, q.Title)
			continue
		}
		require.NotNil(t, q.ModuleID, q.Title)
		assert.Equal(t, *want[i], *q.ModuleID, q.Title)
	}
}

func TestQuestionsAndAssignmentsAreStored(t *testing.T) {
	p, db, _ := newPublisher(t)
	f := soilForm(t)
	mod := f.Modules[0]

	q := f.AddQuiz()
	q.Title = "Check"
	require.NoError(t, f.LinkModule(wizard.Target{Kind: wizard.KindQuiz, QuizID: q.ID}, mod.ID))
	single, err := f.AddQuestion(q.ID, models.TrueFalse)
	require.NoError(t, err)
	single.Question = "Soil is alive"
	single.CorrectAnswer = 0
	multi, err := f.AddQuestion(q.ID, models.MultipleSelect)
	require.NoError(t, err)
	multi.Question = "Pick minerals"
	multi.Options = []string{"clay", "sand", "air", "silt"}
	multi.CorrectAnswers = []int{0, 1, 3}

	a := f.AddAssignment()
	a.Title = "Dig"
	a.ModuleRef = mod.ID
	a.Instructions = []string{" dig a hole ", "", "  "}
	a.Rubric = map[string]any{"depth": 50}

	res, err := p.Publish(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts.Questions)
	assert.Equal(t, 1, res.Counts.Assignments)

	var questions []models.Question
	db.Rows(services.TableQuestions, &questions)
	require.Len(t, questions, 2)
	require.NotNil(t, questions[0].CorrectAnswer)
	assert.Equal(t, 0, *questions[0].CorrectAnswer)
	assert.Equal(t, []string{"True", "False"}, []string(questions[0].Options))
	assert.Nil(t, questions[1].CorrectAnswer)
	assert.Equal(t, []int64{0, 1, 3}, []int64(questions[1].CorrectAnswers))
	assert.Equal(t, 2, questions[1].Position)

	var assignments []models.Assignment
	db.Rows(services.TableAssignments, &assignments)
	require.Len(t, assignments, 1)
	assert.Equal(t, []string{"dig a hole"}, []string(assignments[0].Instructions))
	assert.JSONEq(t, `{"depth":50}`, string(assignments[0].Rubric))
	require.NotNil(t, assignments[0].ModuleID)
}

func TestUploadsUseTimestampedPaths(t *testing.T) {
	p, db, st := newPublisher(t)
	f := soilForm(t)
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindCourse},
		wizard.PendingFile{Name: "Cover Photo.PNG", ContentType: "image/png", Data: []byte("png")}))
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindLesson, ModuleID: f.Modules[0].ID, LessonID: f.Modules[0].Lessons[0].ID},
		wizard.PendingFile{Name: "intro.mp4", ContentType: "video/mp4", Data: []byte("mp4")}))

	res, err := p.Publish(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"courses/1700000000000-cover-photo.png", "lessons/1700000000000-intro.mp4"}, res.Uploaded)

	opts := st.Options(bucket + "/courses/1700000000000-cover-photo.png")
	assert.Equal(t, "3600", opts.CacheControl)
	assert.False(t, opts.Upsert)
	assert.Equal(t, "image/png", opts.ContentType)

	var courses []models.Course
	db.Rows(services.TableCourses, &courses)
	assert.True(t, strings.HasSuffix(courses[0].Image, "/object/public/course-content/courses/1700000000000-cover-photo.png"))

	// the form keeps its pending files
	assert.True(t, f.Course.Image.Pending())
}

func TestUploadFailureRemovesEarlierUploads(t *testing.T) {
	p, db, st := newPublisher(t)
	st.FailUpload = 2
	f := soilForm(t)
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindCourse}, wizard.PendingFile{Name: "a.png", Data: []byte("a")}))
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindInstructor}, wizard.PendingFile{Name: "b.png", Data: []byte("b")}))

	_, err := p.Publish(context.Background(), f)
	var step *services.StepError
	require.ErrorAs(t, err, &step)
	assert.Equal(t, "upload instructor avatar", step.Step)
	assert.ErrorIs(t, err, servicestest.ErrInjected)

	assert.Empty(t, st.Objects())
	assert.Equal(t, []string{bucket + "/courses/1700000000000-a.png"}, st.Removed)
	assert.Zero(t, db.Count(services.TableCourses))
}

func TestInsertFailureRollsBack(t *testing.T) {
	p, db, st := newPublisher(t)
	db.FailInsert[services.TableLessons] = 1
	f := soilForm(t)
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindCourse}, wizard.PendingFile{Name: "a.png", Data: []byte("a")}))

	_, err := p.Publish(context.Background(), f)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "insert lesson 1 of module 1: "), err.Error())
	assert.True(t, errors.Is(err, servicestest.ErrInjected))

	for _, table := range []string{services.TableCourses, services.TableInstructors, services.TableModules} {
		assert.Zero(t, db.Count(table), table)
	}
	assert.Empty(t, st.Objects())
}

func TestUpdateReplacesCourseContent(t *testing.T) {
	p, db, st := newPublisher(t)
	ctx := context.Background()
	f := soilForm(t)
	require.NoError(t, f.AttachFile(wizard.Target{Kind: wizard.KindLesson, ModuleID: f.Modules[0].ID, LessonID: f.Modules[0].Lessons[0].ID},
		wizard.PendingFile{Name: "old.mp4", Data: []byte("old")}))
	q := f.AddQuiz()
	q.Title = "Check"
	q.ModuleRef = f.Modules[0].ID

	created, err := p.Publish(ctx, f)
	require.NoError(t, err)

	edit, err := services.LoadForm(ctx, db, created.CourseID, nil)
	require.NoError(t, err)
	assert.Equal(t, wizard.ModeEdit, edit.Mode)
	require.Len(t, edit.Modules, 1)
	require.Len(t, edit.Quizzes, 1)
	assert.Equal(t, edit.Modules[0].ID, edit.Quizzes[0].ModuleRef)
	assert.Equal(t, "A. Farmer", edit.Instructor.Name)

	edit.Course.Title = "Soil 102"
	lesson := edit.Modules[0].Lessons[0]
	require.NoError(t, edit.RemoveLesson(edit.Modules[0].ID, lesson.ID))
	extra := edit.AddModule()
	extra.Title = "Advanced"

	updated, err := p.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, created.CourseID, updated.CourseID)
	assert.Equal(t, 2, updated.Counts.Modules)

	var courses []models.Course
	db.Rows(services.TableCourses, &courses)
	require.Len(t, courses, 1)
	assert.Equal(t, "Soil 102", courses[0].Title)
	assert.Equal(t, 1, db.Count(services.TableInstructors))
	assert.Equal(t, 2, db.Count(services.TableModules))
	assert.Zero(t, db.Count(services.TableLessons))

	var quizzes []models.Quiz
	db.Rows(services.TableQuizzes, &quizzes)
	require.Len(t, quizzes, 1)
	require.NotNil(t, quizzes[0].ModuleID)

	// the dropped lesson's video is removed from storage
	assert.Empty(t, st.Objects())
}

func TestUpdateNeedsCourseID(t *testing.T) {
	p, _, _ := newPublisher(t)
	_, err := p.Update(context.Background(), soilForm(t))
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"course id"}, verr.Missing)
}

func TestDeleteCourseTreeReturnsMedia(t *testing.T) {
	p, db, _ := newPublisher(t)
	ctx := context.Background()
	f := soilForm(t)
	f.Course.Image = wizard.Asset{URL: "https://cdn.example.com/cover.png"}
	f.Instructor.Avatar = wizard.Asset{URL: "https://cdn.example.com/me.png"}
	res, err := p.Publish(ctx, f)
	require.NoError(t, err)

	var media []string
	err = db.Transaction(ctx, func(tx services.Tables) error {
		media, err = services.DeleteCourseTree(ctx, tx, res.CourseID)
		return err
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://x/v.mp4", "https://cdn.example.com/me.png", "https://cdn.example.com/cover.png"}, media)
	for _, table := range []string{services.TableCourses, services.TableInstructors, services.TableModules, services.TableLessons} {
		assert.Zero(t, db.Count(table), table)
	}

	_, err = services.GetCourse(ctx, db, res.CourseID)
	assert.ErrorIs(t, err, services.ErrCourseNotFound)
}

func TestLoadFormFallsBackOnUnknownQuestionType(t *testing.T) {
	db := servicestest.NewDatabase()
	db.Seed(services.TableCourses, models.Course{Title: "Soil 101", Slug: "soil-101", Status: models.StatusDraft})
	db.Seed(services.TableQuizzes, models.Quiz{CourseID: 1, Title: "Check"})
	db.Seed(services.TableQuestions,
		models.Question{QuizID: 1, Type: "essay", Question: "Describe loam", Options: pq.StringArray{"x"}, Position: 1},
		models.Question{QuizID: 1, Type: models.TrueFalse, Question: "Clay is fine", Options: pq.StringArray{"True", "False"}, Position: 2},
	)

	core, logs := observer.New(zap.WarnLevel)
	form, err := services.LoadForm(context.Background(), db, 1, zap.New(core))
	require.NoError(t, err)

	require.Len(t, form.Quizzes, 1)
	questions := form.Quizzes[0].Questions
	require.Len(t, questions, 2)
	assert.Equal(t, models.MultipleChoice, questions[0].Type)
	assert.Equal(t, "Describe loam", questions[0].Question)
	assert.Len(t, questions[0].Options, 4)
	assert.Equal(t, models.TrueFalse, questions[1].Type)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "essay", logs.All()[0].ContextMap()["type"])
}
