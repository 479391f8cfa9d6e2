package services

import (
	"context"
	"errors"
)

const (
	TableCourses     = "courses"
	TableInstructors = "instructors"
	TableModules     = "modules"
	TableLessons     = "lessons"
	TableQuizzes     = "quizzes"
	TableQuestions   = "questions"
	TableAssignments = "assignments"
	TableCategories  = "categories"
)

var (
	ErrNoRows          = errors.New("no rows matched")
	ErrCourseNotFound  = errors.New("course not found")
	ErrEmptyInsertBody = errors.New("backend returned no inserted row")
)

type Filter struct {
	Column string
	Value  any
}

type Order struct {
	Column string
	Desc   bool
}

// Query narrows a Select with equality filters and an ordering.
type Query struct {
	Filters []Filter
	Order   []Order
}

func Where(column string, value any) Query {
	return Query{}.And(column, value)
}

func (q Query) And(column string, value any) Query {
	q.Filters = append(q.Filters, Filter{Column: column, Value: value})
	return q
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(q.Order, Order{Column: column, Desc: desc})
	return q
}

// Tables is the table-oriented client the admin works against.
// Insert fills the durable id of row.
type Tables interface {
	Select(ctx context.Context, table string, dest any, q Query) error
	Insert(ctx context.Context, table string, row any) error
	Update(ctx context.Context, table string, fields map[string]any, key string, value any) error
	Delete(ctx context.Context, table string, key string, value any) error
}

type Database interface {
	Tables
	// Transaction runs fn so that either all of its writes stay or none do.
	Transaction(ctx context.Context, fn func(tx Tables) error) error
	Ping(ctx context.Context) error
}
