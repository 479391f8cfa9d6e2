package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/vnkhanh/e-course-backend/metrics"
	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/utils"
	"github.com/vnkhanh/e-course-backend/wizard"
)

const uploadCacheControl = "3600"

// ValidationError lists the required fields a form is missing. Nothing is
// sent to the backend when it is returned.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// StepError names the upload or insert that failed, e.g. "insert module 2".
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

type Counts struct {
	Courses     int `json:"courses"`
	Instructors int `json:"instructors"`
	Modules     int `json:"modules"`
	Lessons     int `json:"lessons"`
	Quizzes     int `json:"quizzes"`
	Questions   int `json:"questions"`
	Assignments int `json:"assignments"`
}

type Result struct {
	CourseID int64    `json:"course_id"`
	Counts   Counts   `json:"counts"`
	Warnings []string `json:"warnings"`
	Uploaded []string `json:"uploaded"`
}

// Publisher persists a whole course form: uploads pending files, then
// inserts the course tree row by row inside one backend transaction.
type Publisher struct {
	db      Database
	storage Storage
	bucket  string
	log     *zap.Logger
	now     func() time.Time
}

func NewPublisher(db Database, st Storage, bucket string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{db: db, storage: st, bucket: bucket, log: log, now: time.Now}
}

func (p *Publisher) SetClock(now func() time.Time) { p.now = now }

func Validate(form *wizard.Form) error {
	var missing []string
	if strings.TrimSpace(form.Course.Title) == "" {
		missing = append(missing, "course title")
	}
	if strings.TrimSpace(form.Course.Slug) == "" {
		missing = append(missing, "course slug")
	}
	if strings.TrimSpace(form.Instructor.Name) == "" {
		missing = append(missing, "instructor name")
	}
	if len(form.Modules) == 0 {
		missing = append(missing, "at least one module")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Publish inserts a new course from the form.
func (p *Publisher) Publish(ctx context.Context, form *wizard.Form) (*Result, error) {
	return p.submit(ctx, form, false)
}

// Update rewrites an existing course: its row and instructor are updated and
// its modules, lessons, quizzes, questions and assignments are replaced.
func (p *Publisher) Update(ctx context.Context, form *wizard.Form) (*Result, error) {
	if form.CourseID == 0 {
		return nil, &ValidationError{Missing: []string{"course id"}}
	}
	return p.submit(ctx, form, true)
}

func (p *Publisher) submit(ctx context.Context, form *wizard.Form, update bool) (res *Result, err error) {
	mode := "create"
	if update {
		mode = "update"
	}
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.Submissions.WithLabelValues(mode, result).Inc()
	}()

	if err := Validate(form); err != nil {
		return nil, err
	}

	run := &submission{
		p:    p,
		form: form,
		res:  &Result{Warnings: []string{}, Uploaded: []string{}},
		keep: map[string]bool{},
	}
	defer func() {
		if err != nil {
			run.discardUploads(ctx)
			p.log.Error("course submission failed", zap.String("mode", mode), zap.Error(err))
		}
	}()

	image, err := run.upload(ctx, form.Course.Image, "courses", "course image")
	if err != nil {
		return nil, err
	}
	avatar, err := run.upload(ctx, form.Instructor.Avatar, "instructors", "instructor avatar")
	if err != nil {
		return nil, err
	}

	err = p.db.Transaction(ctx, func(tx Tables) error {
		courseID, err := run.saveCourse(ctx, tx, image, update)
		if err != nil {
			return err
		}
		if err := run.insertInstructor(ctx, tx, courseID, avatar); err != nil {
			return err
		}
		modules, err := run.insertModules(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if err := run.insertQuizzes(ctx, tx, courseID, modules); err != nil {
			return err
		}
		return run.insertAssignments(ctx, tx, courseID, modules)
	})
	if err != nil {
		return nil, err
	}
	run.dropStale(ctx)

	p.log.Info("course submitted",
		zap.String("mode", mode),
		zap.Int64("course_id", run.res.CourseID),
		zap.Int("modules", run.res.Counts.Modules),
		zap.Int("lessons", run.res.Counts.Lessons),
		zap.Int("warnings", len(run.res.Warnings)))
	return run.res, nil
}

type submission struct {
	p        *Publisher
	form     *wizard.Form
	res      *Result
	uploaded []string

	// media referenced by the rows an update replaced, and by the new rows
	stale []string
	keep  map[string]bool
}

func (s *submission) reference(url string) string {
	if url != "" {
		s.keep[url] = true
	}
	return url
}

// dropStale removes replaced media that the new rows no longer reference.
func (s *submission) dropStale(ctx context.Context) {
	var drop []string
	for _, url := range s.stale {
		if url != "" && !s.keep[url] {
			drop = append(drop, url)
		}
	}
	if len(drop) > 0 {
		RemoveMedia(context.WithoutCancel(ctx), s.p.storage, drop, s.p.log)
	}
}

// upload stores a pending file and returns its public URL; an asset that is
// already a URL is returned unchanged.
func (s *submission) upload(ctx context.Context, asset wizard.Asset, folder, what string) (string, error) {
	if !asset.Pending() {
		return asset.URL, nil
	}
	file := asset.File
	path := utils.ObjectPath(folder, file.Name, s.p.now())
	opts := utils.UploadOptions{
		CacheControl: uploadCacheControl,
		ContentType:  file.ContentType,
		Upsert:       false,
	}
	if err := s.p.storage.Upload(ctx, s.p.bucket, path, bytes.NewReader(file.Data), opts); err != nil {
		metrics.Uploads.WithLabelValues("failure").Inc()
		return "", &StepError{Step: "upload " + what, Err: err}
	}
	metrics.Uploads.WithLabelValues("success").Inc()
	s.uploaded = append(s.uploaded, path)
	s.res.Uploaded = append(s.res.Uploaded, path)
	return s.p.storage.PublicURL(s.p.bucket, path), nil
}

// discardUploads removes the objects this run uploaded before it failed.
func (s *submission) discardUploads(ctx context.Context) {
	if len(s.uploaded) == 0 {
		return
	}
	if err := s.p.storage.Remove(context.WithoutCancel(ctx), s.p.bucket, s.uploaded...); err != nil {
		s.p.log.Warn("could not remove uploads of failed submission",
			zap.Strings("paths", s.uploaded), zap.Error(err))
	}
}

// compact trims list entries and drops the blank ones.
func compact(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func courseRow(c wizard.CourseFields, image string) models.Course {
	status := c.Status
	if status == "" {
		status = models.StatusDraft
	}
	return models.Course{
		Slug:             strings.TrimSpace(c.Slug),
		Title:            strings.TrimSpace(c.Title),
		ShortDescription: c.ShortDescription,
		Description:      c.Description,
		Image:            image,
		Category:         c.Category,
		Subcategory:      c.Subcategory,
		Level:            c.Level,
		Language:         c.Language,
		Price:            c.Price,
		OriginalPrice:    c.OriginalPrice,
		Requirements:     compact(c.Requirements),
		WhatYouWillLearn: compact(c.WhatYouWillLearn),
		TargetAudience:   compact(c.TargetAudience),
		Featured:         c.Featured,
		Bestseller:       c.Bestseller,
		Status:           status,
	}
}

// CourseColumns maps a course row to the columns written on update.
func CourseColumns(row models.Course, updatedAt time.Time) map[string]any {
	return map[string]any{
		"slug":              row.Slug,
		"title":             row.Title,
		"short_description": row.ShortDescription,
		"description":       row.Description,
		"image":             row.Image,
		"category":          row.Category,
		"subcategory":       row.Subcategory,
		"level":             row.Level,
		"language":          row.Language,
		"price":             row.Price,
		"originalPrice":     row.OriginalPrice,
		"requirements":      row.Requirements,
		"whatYouWillLearn":  row.WhatYouWillLearn,
		"targetAudience":    row.TargetAudience,
		"featured":          row.Featured,
		"bestseller":        row.Bestseller,
		"status":            row.Status,
		"updated_at":        updatedAt,
	}
}

func (s *submission) saveCourse(ctx context.Context, tx Tables, image string, update bool) (int64, error) {
	row := courseRow(s.form.Course, s.reference(image))

	if update {
		id := s.form.CourseID
		old, err := GetCourse(ctx, tx, id)
		if err != nil {
			return 0, &StepError{Step: "update course", Err: err}
		}
		if err := tx.Update(ctx, TableCourses, CourseColumns(row, s.p.now()), "id", id); err != nil {
			return 0, &StepError{Step: "update course", Err: err}
		}
		media, err := PurgeCourseContent(ctx, tx, id)
		if err != nil {
			return 0, &StepError{Step: "clear course content", Err: err}
		}
		s.stale = append(media, old.Image)
		s.res.CourseID = id
		s.res.Counts.Courses++
		return id, nil
	}

	if err := tx.Insert(ctx, TableCourses, &row); err != nil {
		return 0, &StepError{Step: "insert course", Err: err}
	}
	s.res.CourseID = row.ID
	s.res.Counts.Courses++
	return row.ID, nil
}

func (s *submission) insertInstructor(ctx context.Context, tx Tables, courseID int64, avatar string) error {
	in := s.form.Instructor
	row := models.Instructor{
		CourseID: courseID,
		Name:     strings.TrimSpace(in.Name),
		Title:    in.Title,
		Bio:      in.Bio,
		Avatar:   s.reference(avatar),
	}
	if err := tx.Insert(ctx, TableInstructors, &row); err != nil {
		return &StepError{Step: "insert instructor", Err: err}
	}
	s.res.Counts.Instructors++
	return nil
}

// moduleIndex maps every key a quiz or assignment may hold for a module to
// the module's durable ID.
type moduleIndex struct {
	byID    map[string]int64
	byTitle map[string]int64
	byToken map[string]int64
	byIndex []int64
}

func newModuleIndex() *moduleIndex {
	return &moduleIndex{
		byID:    map[string]int64{},
		byTitle: map[string]int64{},
		byToken: map[string]int64{},
	}
}

func (x *moduleIndex) add(m *wizard.Module, durableID int64) {
	x.byID[m.ID] = durableID
	if title := strings.TrimSpace(m.Title); title != "" {
		// duplicate titles keep the first module
		if _, seen := x.byTitle[title]; !seen {
			x.byTitle[title] = durableID
		}
	}
	if m.Token != "" {
		if _, seen := x.byToken[m.Token]; !seen {
			x.byToken[m.Token] = durableID
		}
	}
	x.byIndex = append(x.byIndex, durableID)
}

// resolve tries the stable ID, then the title, then the token, then a
// 0-based index.
func (x *moduleIndex) resolve(ref string) (int64, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, false
	}
	if id, ok := x.byID[ref]; ok {
		return id, true
	}
	if id, ok := x.byTitle[ref]; ok {
		return id, true
	}
	if id, ok := x.byToken[ref]; ok {
		return id, true
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(x.byIndex) {
		return x.byIndex[i], true
	}
	return 0, false
}

func (s *submission) moduleLink(modules *moduleIndex, ref, owner string) *int64 {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	id, ok := modules.resolve(ref)
	if !ok {
		msg := fmt.Sprintf("%s: module %q not found, saved without a module", owner, ref)
		s.p.log.Warn("module reference not resolved", zap.String("owner", owner), zap.String("ref", ref))
		s.res.Warnings = append(s.res.Warnings, msg)
		return nil
	}
	return &id
}

func (s *submission) insertModules(ctx context.Context, tx Tables, courseID int64) (*moduleIndex, error) {
	index := newModuleIndex()
	for i, m := range s.form.Modules {
		row := models.Module{
			CourseID: courseID,
			Title:    strings.TrimSpace(m.Title),
			Duration: ParseMinutes(m.Duration),
			Position: i + 1,
		}
		if err := tx.Insert(ctx, TableModules, &row); err != nil {
			return nil, &StepError{Step: fmt.Sprintf("insert module %d", i+1), Err: err}
		}
		index.add(m, row.ID)
		s.res.Counts.Modules++

		for j, l := range m.Lessons {
			what := fmt.Sprintf("video for lesson %d of module %d", j+1, i+1)
			video, err := s.upload(ctx, l.Video, "lessons", what)
			if err != nil {
				return nil, err
			}
			lessonType := l.Type
			if lessonType == "" {
				lessonType = models.LessonVideo
			}
			lesson := models.Lesson{
				ModuleID:  row.ID,
				Title:     strings.TrimSpace(l.Title),
				Duration:  l.Duration,
				Type:      lessonType,
				IsPreview: l.Preview,
				VideoURL:  s.reference(video),
				Resources: compact(l.Resources),
				Position:  j + 1,
			}
			if err := tx.Insert(ctx, TableLessons, &lesson); err != nil {
				return nil, &StepError{Step: fmt.Sprintf("insert lesson %d of module %d", j+1, i+1), Err: err}
			}
			s.res.Counts.Lessons++
		}
	}
	return index, nil
}

func questionRow(quizID int64, position int, q *wizard.Question) models.Question {
	row := models.Question{
		QuizID:      quizID,
		Type:        q.Type,
		Question:    strings.TrimSpace(q.Question),
		Options:     q.Options,
		Explanation: q.Explanation,
		Position:    position,
	}
	if row.Type == "" {
		row.Type = models.MultipleChoice
	}
	if row.Type == models.MultipleSelect {
		answers := make([]int64, len(q.CorrectAnswers))
		for i, a := range q.CorrectAnswers {
			answers[i] = int64(a)
		}
		row.CorrectAnswers = answers
		return row
	}
	answer := q.CorrectAnswer
	row.CorrectAnswer = &answer
	return row
}

func (s *submission) insertQuizzes(ctx context.Context, tx Tables, courseID int64, modules *moduleIndex) error {
	for _, q := range s.form.Quizzes {
		name := fmt.Sprintf("quiz '%s'", strings.TrimSpace(q.Title))
		row := models.Quiz{
			CourseID:     courseID,
			ModuleID:     s.moduleLink(modules, q.ModuleRef, name),
			Title:        strings.TrimSpace(q.Title),
			Description:  q.Description,
			TimeLimit:    q.TimeLimit,
			PassingScore: q.PassingScore,
		}
		if err := tx.Insert(ctx, TableQuizzes, &row); err != nil {
			return &StepError{Step: "insert " + name, Err: err}
		}
		s.res.Counts.Quizzes++

		for k, question := range q.Questions {
			qrow := questionRow(row.ID, k+1, question)
			if err := tx.Insert(ctx, TableQuestions, &qrow); err != nil {
				return &StepError{Step: fmt.Sprintf("insert question %d of %s", k+1, name), Err: err}
			}
			s.res.Counts.Questions++
		}
	}
	return nil
}

func (s *submission) insertAssignments(ctx context.Context, tx Tables, courseID int64, modules *moduleIndex) error {
	for _, a := range s.form.Assignments {
		name := fmt.Sprintf("assignment '%s'", strings.TrimSpace(a.Title))
		rubric := a.Rubric
		if rubric == nil {
			rubric = map[string]any{}
		}
		rubricJSON, err := json.Marshal(rubric)
		if err != nil {
			return &StepError{Step: "encode rubric of " + name, Err: err}
		}
		row := models.Assignment{
			CourseID:         courseID,
			ModuleID:         s.moduleLink(modules, a.ModuleRef, name),
			Title:            strings.TrimSpace(a.Title),
			Description:      a.Description,
			EstimatedTime:    a.EstimatedTime,
			Instructions:     compact(a.Instructions),
			Deliverables:     compact(a.Deliverables),
			Resources:        compact(a.Resources),
			Tips:             compact(a.Tips),
			Rubric:           datatypes.JSON(rubricJSON),
			SubmissionFormat: a.SubmissionFormat,
		}
		if err := tx.Insert(ctx, TableAssignments, &row); err != nil {
			return &StepError{Step: "insert " + name, Err: err}
		}
		s.res.Counts.Assignments++
	}
	return nil
}
