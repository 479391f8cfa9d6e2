package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/vnkhanh/e-course-backend/models"
)

var (
	ErrNotFound         = errors.New("item not found")
	ErrUnknownField     = errors.New("unknown field")
	ErrReadOnlyField    = errors.New("field cannot be set directly")
	ErrNotAList         = errors.New("field is not a list of strings")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrInvalidValue     = errors.New("invalid value")
	ErrMinOptions       = errors.New("a question needs at least two options")
	ErrImmutableOptions = errors.New("true/false options cannot be changed")
	ErrNoAsset          = errors.New("target has no file field")
	ErrBadTarget        = errors.New("invalid target")
)

const minOptions = 2

type Kind string

const (
	KindCourse     Kind = "course"
	KindInstructor Kind = "instructor"
	KindModule     Kind = "module"
	KindLesson     Kind = "lesson"
	KindQuiz       Kind = "quiz"
	KindQuestion   Kind = "question"
	KindAssignment Kind = "assignment"
)

// Target addresses one object in the form tree by identifiers.
type Target struct {
	Kind         Kind   `json:"kind"`
	ModuleID     string `json:"module_id,omitempty"`
	LessonID     string `json:"lesson_id,omitempty"`
	QuizID       string `json:"quiz_id,omitempty"`
	QuestionID   string `json:"question_id,omitempty"`
	AssignmentID string `json:"assignment_id,omitempty"`
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

func (f *Form) Module(id string) (*Module, int, error) {
	for i, m := range f.Modules {
		if m.ID == id {
			return m, i, nil
		}
	}
	return nil, -1, notFound("module", id)
}

func (f *Form) Lesson(moduleID, lessonID string) (*Lesson, int, error) {
	m, _, err := f.Module(moduleID)
	if err != nil {
		return nil, -1, err
	}
	for i, l := range m.Lessons {
		if l.ID == lessonID {
			return l, i, nil
		}
	}
	return nil, -1, notFound("lesson", lessonID)
}

func (f *Form) Quiz(id string) (*Quiz, int, error) {
	for i, q := range f.Quizzes {
		if q.ID == id {
			return q, i, nil
		}
	}
	return nil, -1, notFound("quiz", id)
}

func (f *Form) Question(quizID, questionID string) (*Question, int, error) {
	qz, _, err := f.Quiz(quizID)
	if err != nil {
		return nil, -1, err
	}
	for i, q := range qz.Questions {
		if q.ID == questionID {
			return q, i, nil
		}
	}
	return nil, -1, notFound("question", questionID)
}

func (f *Form) Assignment(id string) (*Assignment, int, error) {
	for i, a := range f.Assignments {
		if a.ID == id {
			return a, i, nil
		}
	}
	return nil, -1, notFound("assignment", id)
}

// resolve returns a pointer to the struct the target names.
func (f *Form) resolve(t Target) (any, error) {
	switch t.Kind {
	case KindCourse:
		return &f.Course, nil
	case KindInstructor:
		return &f.Instructor, nil
	case KindModule:
		m, _, err := f.Module(t.ModuleID)
		return m, err
	case KindLesson:
		l, _, err := f.Lesson(t.ModuleID, t.LessonID)
		return l, err
	case KindQuiz:
		q, _, err := f.Quiz(t.QuizID)
		return q, err
	case KindQuestion:
		q, _, err := f.Question(t.QuizID, t.QuestionID)
		return q, err
	case KindAssignment:
		a, _, err := f.Assignment(t.AssignmentID)
		return a, err
	}
	return nil, fmt.Errorf("%w: kind %q", ErrBadTarget, t.Kind)
}

var readOnlyFields = map[string]bool{
	"id":         true,
	"token":      true,
	"durable_id": true,
}

type validatable interface{ Valid() bool }

// SetField replaces one named field (by its JSON name) on the target with the
// decoded value of raw.
func (f *Form) SetField(t Target, field string, raw json.RawMessage) error {
	obj, err := f.resolve(t)
	if err != nil {
		return err
	}

	if q, ok := obj.(*Question); ok && field == "options" {
		var opts []string
		if err := json.Unmarshal(raw, &opts); err != nil {
			return fmt.Errorf("field options: %w", err)
		}
		if q.Type == models.TrueFalse {
			return ErrImmutableOptions
		}
		if len(opts) < minOptions {
			return ErrMinOptions
		}
		q.Options = opts
		q.dropAnswersFrom(len(opts))
		return nil
	}

	var prevType models.QuestionType
	if q, ok := obj.(*Question); ok {
		prevType = q.Type
		if err := q.checkAnswers(field, raw); err != nil {
			return err
		}
	}

	if err := setJSONField(obj, field, raw); err != nil {
		return err
	}

	switch v := obj.(type) {
	case *Question:
		if field == "type" && v.Type != prevType {
			v.resetOptions()
		}
	case *CourseFields:
		if field == "title" && v.Slug == "" {
			v.Slug = SuggestSlug(v.Title)
		}
	}
	return nil
}

func setJSONField(obj any, name string, raw json.RawMessage) error {
	v := reflect.ValueOf(obj).Elem()
	fv, ok := fieldByJSONName(v, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if readOnlyFields[name] || isNestedList(fv.Type()) {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	}

	ptr := reflect.New(fv.Type())
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	// files arrive only through AttachFile
	if a, ok := ptr.Interface().(*Asset); ok {
		a.File = nil
	}
	if c, ok := ptr.Elem().Interface().(validatable); ok && !c.Valid() {
		return fmt.Errorf("%w: %s = %v", ErrInvalidValue, name, ptr.Elem().Interface())
	}
	fv.Set(ptr.Elem())
	return nil
}

func fieldByJSONName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := strings.Split(sf.Tag.Get("json"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// isNestedList reports lists of child items (lessons, questions) which have
// their own add/remove operations.
func isNestedList(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Ptr
}

func (f *Form) stringList(t Target, field string) (reflect.Value, any, error) {
	obj, err := f.resolve(t)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	fv, ok := fieldByJSONName(reflect.ValueOf(obj).Elem(), field)
	if !ok {
		return reflect.Value{}, nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if fv.Kind() != reflect.Slice || fv.Type().Elem().Kind() != reflect.String {
		return reflect.Value{}, nil, fmt.Errorf("%w: %s", ErrNotAList, field)
	}
	return fv, obj, nil
}

func optionGuard(obj any, field string) (*Question, error) {
	q, ok := obj.(*Question)
	if !ok || field != "options" {
		return nil, nil
	}
	if q.Type == models.TrueFalse {
		return q, ErrImmutableOptions
	}
	return q, nil
}

// AppendListItem adds an empty string to a list field and returns its index.
func (f *Form) AppendListItem(t Target, field string) (int, error) {
	fv, obj, err := f.stringList(t, field)
	if err != nil {
		return -1, err
	}
	if _, err := optionGuard(obj, field); err != nil {
		return -1, err
	}
	fv.Set(reflect.Append(fv, reflect.ValueOf("").Convert(fv.Type().Elem())))
	return fv.Len() - 1, nil
}

func (f *Form) SetListItem(t Target, field string, index int, value string) error {
	fv, obj, err := f.stringList(t, field)
	if err != nil {
		return err
	}
	if _, err := optionGuard(obj, field); err != nil {
		return err
	}
	if index < 0 || index >= fv.Len() {
		return fmt.Errorf("%s[%d]: %w", field, index, ErrIndexOutOfRange)
	}
	fv.Index(index).SetString(value)
	return nil
}

func (f *Form) RemoveListItem(t Target, field string, index int) error {
	fv, obj, err := f.stringList(t, field)
	if err != nil {
		return err
	}
	q, err := optionGuard(obj, field)
	if err != nil {
		return err
	}
	if index < 0 || index >= fv.Len() {
		return fmt.Errorf("%s[%d]: %w", field, index, ErrIndexOutOfRange)
	}
	if q != nil && fv.Len() <= minOptions {
		return ErrMinOptions
	}
	fv.Set(reflect.AppendSlice(fv.Slice(0, index), fv.Slice(index+1, fv.Len())))
	if q != nil {
		q.shiftAnswers(index)
	}
	return nil
}

// checkAnswers rejects answer indices that do not point at an option.
func (q *Question) checkAnswers(field string, raw json.RawMessage) error {
	var answers []int
	switch field {
	case "correct_answer":
		var a int
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		answers = []int{a}
	case "correct_answers":
		if err := json.Unmarshal(raw, &answers); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	default:
		return nil
	}
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		if a < 0 || a >= len(q.Options) {
			return fmt.Errorf("%w: %s = %d, question has %d options", ErrInvalidValue, field, a, len(q.Options))
		}
		if seen[a] {
			return fmt.Errorf("%w: %s lists %d twice", ErrInvalidValue, field, a)
		}
		seen[a] = true
	}
	return nil
}

// dropAnswersFrom forgets answers at or past n after the options shrink.
func (q *Question) dropAnswersFrom(n int) {
	if q.CorrectAnswer >= n {
		q.CorrectAnswer = 0
	}
	kept := q.CorrectAnswers[:0]
	for _, a := range q.CorrectAnswers {
		if a < n {
			kept = append(kept, a)
		}
	}
	q.CorrectAnswers = kept
}

// shiftAnswers keeps answer indices pointing at the same options after the
// option at removed is dropped.
func (q *Question) shiftAnswers(removed int) {
	switch {
	case q.CorrectAnswer == removed:
		q.CorrectAnswer = 0
	case q.CorrectAnswer > removed:
		q.CorrectAnswer--
	}
	kept := q.CorrectAnswers[:0]
	for _, a := range q.CorrectAnswers {
		switch {
		case a == removed:
			continue
		case a > removed:
			kept = append(kept, a-1)
		default:
			kept = append(kept, a)
		}
	}
	q.CorrectAnswers = kept
}

func (f *Form) AddModule() *Module {
	m := NewModule(f.clock())
	f.Modules = append(f.Modules, m)
	return m
}

func (f *Form) RemoveModule(id string) error {
	_, i, err := f.Module(id)
	if err != nil {
		return err
	}
	f.Modules = append(f.Modules[:i], f.Modules[i+1:]...)
	return nil
}

func (f *Form) AddLesson(moduleID string) (*Lesson, error) {
	m, _, err := f.Module(moduleID)
	if err != nil {
		return nil, err
	}
	l := NewLesson()
	m.Lessons = append(m.Lessons, l)
	return l, nil
}

func (f *Form) RemoveLesson(moduleID, lessonID string) error {
	m, _, err := f.Module(moduleID)
	if err != nil {
		return err
	}
	_, i, err := f.Lesson(moduleID, lessonID)
	if err != nil {
		return err
	}
	m.Lessons = append(m.Lessons[:i], m.Lessons[i+1:]...)
	return nil
}

func (f *Form) AddQuiz() *Quiz {
	q := NewQuiz()
	f.Quizzes = append(f.Quizzes, q)
	return q
}

func (f *Form) RemoveQuiz(id string) error {
	_, i, err := f.Quiz(id)
	if err != nil {
		return err
	}
	f.Quizzes = append(f.Quizzes[:i], f.Quizzes[i+1:]...)
	return nil
}

func (f *Form) AddQuestion(quizID string, qt models.QuestionType) (*Question, error) {
	if qt == "" {
		qt = models.MultipleChoice
	}
	if !qt.Valid() {
		return nil, fmt.Errorf("%w: type = %s", ErrInvalidValue, qt)
	}
	qz, _, err := f.Quiz(quizID)
	if err != nil {
		return nil, err
	}
	q := NewQuestion(qt)
	qz.Questions = append(qz.Questions, q)
	return q, nil
}

func (f *Form) RemoveQuestion(quizID, questionID string) error {
	qz, _, err := f.Quiz(quizID)
	if err != nil {
		return err
	}
	_, i, err := f.Question(quizID, questionID)
	if err != nil {
		return err
	}
	qz.Questions = append(qz.Questions[:i], qz.Questions[i+1:]...)
	return nil
}

func (f *Form) AddAssignment() *Assignment {
	a := NewAssignment()
	f.Assignments = append(f.Assignments, a)
	return a
}

func (f *Form) RemoveAssignment(id string) error {
	_, i, err := f.Assignment(id)
	if err != nil {
		return err
	}
	f.Assignments = append(f.Assignments[:i], f.Assignments[i+1:]...)
	return nil
}

// LinkModule points a quiz or assignment at a module by the module's stable
// ID. An empty moduleID clears the link.
func (f *Form) LinkModule(t Target, moduleID string) error {
	if moduleID != "" {
		if _, _, err := f.Module(moduleID); err != nil {
			return err
		}
	}
	switch t.Kind {
	case KindQuiz:
		q, _, err := f.Quiz(t.QuizID)
		if err != nil {
			return err
		}
		q.ModuleRef = moduleID
	case KindAssignment:
		a, _, err := f.Assignment(t.AssignmentID)
		if err != nil {
			return err
		}
		a.ModuleRef = moduleID
	default:
		return fmt.Errorf("%w: only quizzes and assignments link to modules", ErrBadTarget)
	}
	return nil
}

// AttachFile stores a pending upload on the target's file field: the course
// image, the instructor avatar or a lesson video.
func (f *Form) AttachFile(t Target, file PendingFile) error {
	obj, err := f.resolve(t)
	if err != nil {
		return err
	}
	asset := Asset{File: &file}
	switch v := obj.(type) {
	case *CourseFields:
		v.Image = asset
	case *InstructorFields:
		v.Avatar = asset
	case *Lesson:
		v.Video = asset
	default:
		return ErrNoAsset
	}
	return nil
}
