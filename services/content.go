package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/wizard"
)

// PurgeCourseContent deletes everything hanging off a course except the course
// row itself and returns the media URLs the deleted rows referenced.
func PurgeCourseContent(ctx context.Context, tx Tables, courseID int64) ([]string, error) {
	var media []string

	var modules []models.Module
	if err := tx.Select(ctx, TableModules, &modules, Where("course_id", courseID)); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	for _, m := range modules {
		var lessons []models.Lesson
		if err := tx.Select(ctx, TableLessons, &lessons, Where("module_id", m.ID)); err != nil {
			return nil, fmt.Errorf("list lessons of module %d: %w", m.ID, err)
		}
		for _, l := range lessons {
			media = append(media, l.VideoURL)
		}
		if err := tx.Delete(ctx, TableLessons, "module_id", m.ID); err != nil {
			return nil, fmt.Errorf("delete lessons of module %d: %w", m.ID, err)
		}
	}

	var quizzes []models.Quiz
	if err := tx.Select(ctx, TableQuizzes, &quizzes, Where("course_id", courseID)); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	for _, q := range quizzes {
		if err := tx.Delete(ctx, TableQuestions, "quiz_id", q.ID); err != nil {
			return nil, fmt.Errorf("delete questions of quiz %d: %w", q.ID, err)
		}
	}

	// quizzes và assignments trỏ tới modules nên phải xoá trước
	steps := []struct{ table, key string }{
		{TableQuizzes, "course_id"},
		{TableAssignments, "courseId"},
		{TableModules, "course_id"},
	}
	for _, s := range steps {
		if err := tx.Delete(ctx, s.table, s.key, courseID); err != nil {
			return nil, fmt.Errorf("delete %s: %w", s.table, err)
		}
	}

	var instructors []models.Instructor
	if err := tx.Select(ctx, TableInstructors, &instructors, Where("course_id", courseID)); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	for _, in := range instructors {
		media = append(media, in.Avatar)
	}
	if err := tx.Delete(ctx, TableInstructors, "course_id", courseID); err != nil {
		return nil, fmt.Errorf("delete instructors: %w", err)
	}
	return media, nil
}

// DeleteCourseTree removes a course with all of its content and returns the
// media URLs that are no longer referenced.
func DeleteCourseTree(ctx context.Context, tx Tables, courseID int64) ([]string, error) {
	course, err := GetCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	media, err := PurgeCourseContent(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if err := tx.Delete(ctx, TableCourses, "id", courseID); err != nil {
		return nil, fmt.Errorf("delete course: %w", err)
	}
	return append(media, course.Image), nil
}

func GetCourse(ctx context.Context, tx Tables, courseID int64) (*models.Course, error) {
	var rows []models.Course
	if err := tx.Select(ctx, TableCourses, &rows, Where("id", courseID)); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrCourseNotFound
	}
	return &rows[0], nil
}

// LoadForm rebuilds an edit-mode form from the stored rows of a course.
// Quiz and assignment module links are rewritten to the new forms' module IDs.
func LoadForm(ctx context.Context, tx Tables, courseID int64, log *zap.Logger) (*wizard.Form, error) {
	if log == nil {
		log = zap.NewNop()
	}
	course, err := GetCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}

	form := wizard.NewForm(wizard.ModeEdit)
	form.CourseID = course.ID
	form.Course = wizard.CourseFields{
		Title:            course.Title,
		Slug:             course.Slug,
		ShortDescription: course.ShortDescription,
		Description:      course.Description,
		Image:            wizard.Asset{URL: course.Image},
		Category:         course.Category,
		Subcategory:      course.Subcategory,
		Level:            course.Level,
		Language:         course.Language,
		Price:            course.Price,
		OriginalPrice:    course.OriginalPrice,
		Requirements:     nonNil(course.Requirements),
		WhatYouWillLearn: nonNil(course.WhatYouWillLearn),
		TargetAudience:   nonNil(course.TargetAudience),
		Featured:         course.Featured,
		Bestseller:       course.Bestseller,
		Status:           course.Status,
	}

	var instructors []models.Instructor
	if err := tx.Select(ctx, TableInstructors, &instructors, Where("course_id", courseID).OrderBy("id", false)); err != nil {
		return nil, err
	}
	if len(instructors) > 0 {
		in := instructors[0]
		form.Instructor = wizard.InstructorFields{
			Name:   in.Name,
			Title:  in.Title,
			Bio:    in.Bio,
			Avatar: wizard.Asset{URL: in.Avatar},
		}
	}

	var modules []models.Module
	if err := tx.Select(ctx, TableModules, &modules, Where("course_id", courseID).OrderBy("position", false)); err != nil {
		return nil, err
	}
	stableIDs := make(map[int64]string, len(modules))
	for _, m := range modules {
		mod := form.AddModule()
		mod.DurableID = m.ID
		mod.Title = m.Title
		if m.Duration > 0 {
			mod.Duration = strconv.Itoa(m.Duration) + " min"
		}
		stableIDs[m.ID] = mod.ID

		var lessons []models.Lesson
		if err := tx.Select(ctx, TableLessons, &lessons, Where("module_id", m.ID).OrderBy("position", false)); err != nil {
			return nil, err
		}
		for _, l := range lessons {
			lesson, err := form.AddLesson(mod.ID)
			if err != nil {
				return nil, err
			}
			lesson.Title = l.Title
			lesson.Duration = l.Duration
			lesson.Type = l.Type
			lesson.Preview = l.IsPreview
			lesson.Video = wizard.Asset{URL: l.VideoURL}
			lesson.Resources = nonNil(l.Resources)
		}
	}

	moduleRef := func(id *int64) string {
		if id == nil {
			return ""
		}
		return stableIDs[*id]
	}

	var quizzes []models.Quiz
	if err := tx.Select(ctx, TableQuizzes, &quizzes, Where("course_id", courseID).OrderBy("id", false)); err != nil {
		return nil, err
	}
	for _, q := range quizzes {
		quiz := form.AddQuiz()
		quiz.Title = q.Title
		quiz.Description = q.Description
		quiz.ModuleRef = moduleRef(q.ModuleID)
		quiz.TimeLimit = q.TimeLimit
		quiz.PassingScore = q.PassingScore

		var questions []models.Question
		if err := tx.Select(ctx, TableQuestions, &questions, Where("quiz_id", q.ID).OrderBy("position", false)); err != nil {
			return nil, err
		}
		for _, row := range questions {
			qt := row.Type
			if qt != "" && !qt.Valid() {
				log.Warn("unknown question type, loading as multiple-choice",
					zap.Int64("question_id", row.ID), zap.String("type", string(qt)))
				qt = models.MultipleChoice
			}
			question, err := form.AddQuestion(quiz.ID, qt)
			if err != nil {
				return nil, err
			}
			question.Question = row.Question
			if len(row.Options) >= 2 {
				question.Options = nonNil(row.Options)
			}
			question.Explanation = row.Explanation
			if row.CorrectAnswer != nil {
				question.CorrectAnswer = *row.CorrectAnswer
			}
			question.CorrectAnswers = make([]int, len(row.CorrectAnswers))
			for i, a := range row.CorrectAnswers {
				question.CorrectAnswers[i] = int(a)
			}
		}
	}

	var assignments []models.Assignment
	if err := tx.Select(ctx, TableAssignments, &assignments, Where("courseId", courseID).OrderBy("id", false)); err != nil {
		return nil, err
	}
	for _, a := range assignments {
		as := form.AddAssignment()
		as.Title = a.Title
		as.Description = a.Description
		as.EstimatedTime = a.EstimatedTime
		as.ModuleRef = moduleRef(a.ModuleID)
		as.Instructions = nonNil(a.Instructions)
		as.Deliverables = nonNil(a.Deliverables)
		as.Resources = nonNil(a.Resources)
		as.Tips = nonNil(a.Tips)
		as.SubmissionFormat = a.SubmissionFormat
		if len(a.Rubric) > 0 {
			rubric := map[string]any{}
			if err := json.Unmarshal(a.Rubric, &rubric); err == nil {
				as.Rubric = rubric
			}
		}
	}
	return form, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return append([]string(nil), list...)
}
