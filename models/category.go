package models

type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:100;not null;unique" json:"name"`
	Slug string `gorm:"size:100;uniqueIndex" json:"slug"`
}

func (Category) TableName() string { return "categories" }
