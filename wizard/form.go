// Package wizard holds the editable, in-memory tree behind the multi-step
// course form: course and instructor fields, modules with lessons, quizzes
// with questions, and assignments.
package wizard

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/vnkhanh/e-course-backend/models"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// PendingFile is an uploaded file kept in memory until the form is submitted.
type PendingFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Data        []byte `json:"-"`
}

// Asset holds either a URL already in storage or a file waiting to be uploaded.
type Asset struct {
	URL  string       `json:"url"`
	File *PendingFile `json:"file,omitempty"`
}

func (a Asset) Pending() bool { return a.File != nil }

type CourseFields struct {
	Title            string              `json:"title"`
	Slug             string              `json:"slug"`
	ShortDescription string              `json:"short_description"`
	Description      string              `json:"description"`
	Image            Asset               `json:"image"`
	Category         string              `json:"category"`
	Subcategory      string              `json:"subcategory"`
	Level            string              `json:"level"`
	Language         string              `json:"language"`
	Price            float64             `json:"price"`
	OriginalPrice    float64             `json:"original_price"`
	Requirements     []string            `json:"requirements"`
	WhatYouWillLearn []string            `json:"what_you_will_learn"`
	TargetAudience   []string            `json:"target_audience"`
	Featured         bool                `json:"featured"`
	Bestseller       bool                `json:"bestseller"`
	Status           models.CourseStatus `json:"status"`
}

type InstructorFields struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Bio    string `json:"bio"`
	Avatar Asset  `json:"avatar"`
}

// Module is identified by a stable ID from creation on. Token is the
// timestamp-derived temporary key older clients correlate modules with.
type Module struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	DurableID int64     `json:"durable_id,omitempty"`
	Title     string    `json:"title"`
	Duration  string    `json:"duration"`
	Lessons   []*Lesson `json:"lessons"`
}

type Lesson struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Duration  string            `json:"duration"`
	Type      models.LessonType `json:"type"`
	Preview   bool              `json:"is_preview"`
	Video     Asset             `json:"video"`
	Resources []string          `json:"resources"`
}

// Quiz.ModuleRef points at a module without owning it. It normally holds the
// module's stable ID but may also carry a title, token or index.
type Quiz struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	ModuleRef    string      `json:"module_ref"`
	TimeLimit    int         `json:"time_limit"`
	PassingScore int         `json:"passing_score"`
	Questions    []*Question `json:"questions"`
}

type Question struct {
	ID             string              `json:"id"`
	Type           models.QuestionType `json:"type"`
	Question       string              `json:"question"`
	Options        []string            `json:"options"`
	CorrectAnswer  int                 `json:"correct_answer"`
	CorrectAnswers []int               `json:"correct_answers"`
	Explanation    string              `json:"explanation"`
}

type Assignment struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	EstimatedTime    string         `json:"estimated_time"`
	ModuleRef        string         `json:"module_ref"`
	Instructions     []string       `json:"instructions"`
	Deliverables     []string       `json:"deliverables"`
	Resources        []string       `json:"resources"`
	Tips             []string       `json:"tips"`
	Rubric           map[string]any `json:"rubric"`
	SubmissionFormat string         `json:"submission_format"`
}

type Form struct {
	Mode        Mode             `json:"mode"`
	CourseID    int64            `json:"course_id,omitempty"`
	Course      CourseFields     `json:"course"`
	Instructor  InstructorFields `json:"instructor"`
	Modules     []*Module        `json:"modules"`
	Quizzes     []*Quiz          `json:"quizzes"`
	Assignments []*Assignment    `json:"assignments"`
	Steps       *Stepper         `json:"steps"`

	now func() time.Time
}

func NewForm(mode Mode) *Form {
	return &Form{
		Mode: mode,
		Course: CourseFields{
			Requirements:     []string{},
			WhatYouWillLearn: []string{},
			TargetAudience:   []string{},
			Status:           models.StatusDraft,
		},
		Modules:     []*Module{},
		Quizzes:     []*Quiz{},
		Assignments: []*Assignment{},
		Steps:       NewStepper(),
		now:         time.Now,
	}
}

// SetClock replaces the clock used for module tokens.
func (f *Form) SetClock(now func() time.Time) { f.now = now }

func (f *Form) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// SuggestSlug derives a URL slug from a course title.
func SuggestSlug(title string) string {
	return slug.Make(title)
}

func newID() string { return uuid.NewString() }

func NewModule(now time.Time) *Module {
	return &Module{
		ID:      newID(),
		Token:   strconv.FormatInt(now.UnixMilli(), 10),
		Lessons: []*Lesson{},
	}
}

func NewLesson() *Lesson {
	return &Lesson{
		ID:        newID(),
		Type:      models.LessonVideo,
		Resources: []string{},
	}
}

func NewQuiz() *Quiz {
	return &Quiz{
		ID:           newID(),
		TimeLimit:    30,
		PassingScore: 70,
		Questions:    []*Question{},
	}
}

func NewQuestion(qt models.QuestionType) *Question {
	q := &Question{ID: newID(), Type: qt}
	q.resetOptions()
	return q
}

func NewAssignment() *Assignment {
	return &Assignment{
		ID:           newID(),
		Instructions: []string{},
		Deliverables: []string{},
		Resources:    []string{},
		Tips:         []string{},
		Rubric:       map[string]any{},
	}
}

// resetOptions puts the option list back to the default for the question type.
func (q *Question) resetOptions() {
	q.CorrectAnswer = 0
	q.CorrectAnswers = []int{}
	if q.Type == models.TrueFalse {
		q.Options = []string{"True", "False"}
		return
	}
	q.Options = []string{"", "", "", ""}
}
