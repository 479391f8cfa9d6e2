package models

import (
	"time"

	"github.com/lib/pq"
)

type Module struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  int64     `gorm:"column:course_id;index;not null" json:"course_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Duration  int       `gorm:"default:0" json:"duration"` // phút
	Position  int       `gorm:"column:position;default:1" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Module) TableName() string { return "modules" }

type LessonType string

const (
	LessonVideo      LessonType = "video"
	LessonQuiz       LessonType = "quiz"
	LessonAssignment LessonType = "assignment"
	LessonReading    LessonType = "reading"
)

func (t LessonType) Valid() bool {
	switch t {
	case LessonVideo, LessonQuiz, LessonAssignment, LessonReading:
		return true
	}
	return false
}

type Lesson struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ModuleID  int64          `gorm:"column:module_id;index;not null" json:"module_id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Duration  string         `gorm:"size:50" json:"duration"`
	Type      LessonType     `gorm:"type:varchar(20);default:'video'" json:"type"`
	IsPreview bool           `gorm:"column:is_preview;default:false" json:"is_preview"`
	VideoURL  string         `gorm:"column:video_url;type:text" json:"video_url"`
	Resources pq.StringArray `gorm:"type:text[]" json:"resources"`
	Position  int            `gorm:"column:position;default:1" json:"position"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Lesson) TableName() string { return "lessons" }
