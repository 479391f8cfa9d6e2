package models

import (
	"time"

	"github.com/lib/pq"
)

type CourseStatus string

const (
	StatusDraft     CourseStatus = "draft"
	StatusPublished CourseStatus = "published"
	StatusArchived  CourseStatus = "archived"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Course là một dòng của bảng courses.
// Vài cột dùng camelCase đúng như bảng đã định nghĩa, json tag luôn trùng tên cột.
type Course struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug             string         `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	ShortDescription string         `gorm:"type:text" json:"short_description"`
	Description      string         `gorm:"type:text" json:"description"`
	Image            string         `gorm:"type:text" json:"image"`
	Category         string         `gorm:"size:100;index" json:"category"`
	Subcategory      string         `gorm:"size:100" json:"subcategory"`
	Level            string         `gorm:"size:50" json:"level"`
	Language         string         `gorm:"size:50" json:"language"`
	Price            float64        `gorm:"type:numeric(10,2);default:0" json:"price"`
	OriginalPrice    float64        `gorm:"column:originalPrice;type:numeric(10,2);default:0" json:"originalPrice"`
	Requirements     pq.StringArray `gorm:"type:text[]" json:"requirements"`
	WhatYouWillLearn pq.StringArray `gorm:"column:whatYouWillLearn;type:text[]" json:"whatYouWillLearn"`
	TargetAudience   pq.StringArray `gorm:"column:targetAudience;type:text[]" json:"targetAudience"`
	Featured         bool           `gorm:"default:false" json:"featured"`
	Bestseller       bool           `gorm:"default:false" json:"bestseller"`
	Status           CourseStatus   `gorm:"type:varchar(20);default:'draft';index" json:"status"` // draft | published | archived
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Course) TableName() string { return "courses" }
