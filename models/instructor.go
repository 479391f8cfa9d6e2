package models

import "time"

// Instructor: mỗi khoá học có đúng một giảng viên, liên kết qua course_id.
type Instructor struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseID  int64     `gorm:"column:course_id;index;not null" json:"course_id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Title     string    `gorm:"size:150" json:"title"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Avatar    string    `gorm:"type:text" json:"avatar"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Instructor) TableName() string { return "instructors" }
