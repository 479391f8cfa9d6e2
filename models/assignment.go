package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Assignment: bảng assignments dùng courseId/moduleId (camelCase), khác các bảng còn lại.
type Assignment struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID         int64          `gorm:"column:courseId;index;not null" json:"courseId"`
	ModuleID         *int64         `gorm:"column:moduleId" json:"moduleId"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	EstimatedTime    string         `gorm:"column:estimatedTime;size:50" json:"estimatedTime"`
	Instructions     pq.StringArray `gorm:"type:text[]" json:"instructions"`
	Deliverables     pq.StringArray `gorm:"type:text[]" json:"deliverables"`
	Resources        pq.StringArray `gorm:"type:text[]" json:"resources"`
	Tips             pq.StringArray `gorm:"type:text[]" json:"tips"`
	Rubric           datatypes.JSON `gorm:"type:jsonb" json:"rubric"`
	SubmissionFormat string         `gorm:"column:submissionFormat;size:100" json:"submissionFormat"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Assignment) TableName() string { return "assignments" }
