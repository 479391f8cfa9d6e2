package services

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vnkhanh/e-course-backend/models"
)

const exportSheet = "Courses"

var exportHeader = []any{
	"ID", "Slug", "Title", "Category", "Subcategory", "Level", "Language",
	"Price", "Original price", "Status", "Featured", "Bestseller", "Instructor",
	"Created at", "Updated at",
}

// ExportCourses writes the courses as one xlsx sheet. instructors maps a
// course id to its instructor's name.
func ExportCourses(w io.Writer, courses []models.Course, instructors map[int64]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	for i, c := range courses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			c.ID, c.Slug, c.Title, c.Category, c.Subcategory, c.Level, c.Language,
			c.Price, c.OriginalPrice, string(c.Status), c.Featured, c.Bestseller,
			strings.TrimSpace(instructors[c.ID]),
			c.CreatedAt.Format("2006-01-02 15:04"), c.UpdatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.Write(w)
}
