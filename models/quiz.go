package models

import (
	"time"

	"github.com/lib/pq"
)

type Quiz struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID     int64     `gorm:"column:course_id;index;not null" json:"course_id"`
	ModuleID     *int64    `gorm:"column:module_id" json:"module_id"` // null nếu không tìm được module
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	TimeLimit    int       `gorm:"column:time_limit;default:0" json:"time_limit"`         // phút
	PassingScore int       `gorm:"column:passing_score;default:70" json:"passing_score"` // %
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Quiz) TableName() string { return "quizzes" }

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
	MultipleSelect QuestionType = "multiple-select"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, MultipleSelect:
		return true
	}
	return false
}

type Question struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID         int64          `gorm:"column:quiz_id;index;not null" json:"quiz_id"`
	Type           QuestionType   `gorm:"type:varchar(30);default:'multiple-choice'" json:"type"`
	Question       string         `gorm:"type:text;not null" json:"question"`
	Options        pq.StringArray `gorm:"type:text[]" json:"options"`
	CorrectAnswer  *int           `gorm:"column:correctAnswer" json:"correctAnswer"`
	CorrectAnswers pq.Int64Array  `gorm:"column:correctAnswers;type:integer[]" json:"correctAnswers"`
	Explanation    string         `gorm:"type:text" json:"explanation"`
	Position       int            `gorm:"column:position;default:1" json:"position"`
}

func (Question) TableName() string { return "questions" }
