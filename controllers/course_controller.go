package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CourseHandler struct {
	cache        *store.Cache
	db           services.Database
	itemsPerPage int
	log          *zap.Logger
}

func NewCourseHandler(cache *store.Cache, db services.Database, itemsPerPage int, log *zap.Logger) *CourseHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CourseHandler{cache: cache, db: db, itemsPerPage: itemsPerPage, log: log}
}

// viewFromQuery đọc search/filter/sort/page từ query string.
func (h *CourseHandler) viewFromQuery(c *gin.Context) store.View {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.itemsPerPage)))
	v := store.NewView(limit)

	v.SetSearchQuery(c.Query("search"))

	patch := store.FilterPatch{}
	for key, dst := range map[string]**string{
		"status":     &patch.Status,
		"category":   &patch.Category,
		"instructor": &patch.Instructor,
		"level":      &patch.Level,
		"price":      &patch.Price,
	} {
		if val, ok := c.GetQuery(key); ok {
			val := val
			*dst = &val
		}
	}
	const layout = "2006-01-02"
	if s := c.Query("from_date"); s != "" {
		if t, err := time.Parse(layout, s); err == nil {
			patch.CreatedFrom = &t
		}
	}
	if s := c.Query("to_date"); s != "" {
		if t, err := time.Parse(layout, s); err == nil {
			patch.CreatedTo = &t
		}
	}
	v.SetFilters(patch)

	if sortBy := store.SortField(c.Query("sort_by")); sortBy.Valid() {
		v.SetSortBy(sortBy)
	}
	if order := c.Query("sort_order"); order != "" {
		v.SetSortOrder(store.SortOrder(order))
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	v.SetCurrentPage(page)
	return v
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	res, err := h.cache.Initialize(c.Request.Context())
	if err != nil {
		respondError(c, "Không thể tải danh sách khoá học", err)
		return
	}

	page := h.cache.Page(h.viewFromQuery(c))
	c.JSON(http.StatusOK, gin.H{
		"data":        page.Courses,
		"total":       page.Total,
		"page":        page.CurrentPage,
		"limit":       page.ItemsPerPage,
		"total_pages": page.TotalPages,
		"has_next":    page.HasNext,
		"has_prev":    page.HasPrev,
		"cached":      res.Cached,
	})
}

// ExportCourses xuất toàn bộ danh sách đã lọc (không phân trang) ra file xlsx.
func (h *CourseHandler) ExportCourses(c *gin.Context) {
	if _, err := h.cache.Initialize(c.Request.Context()); err != nil {
		respondError(c, "Không thể tải danh sách khoá học", err)
		return
	}

	rows := h.cache.Filtered(h.viewFromQuery(c))
	courses := make([]models.Course, len(rows))
	instructors := make(map[int64]string, len(rows))
	for i, r := range rows {
		courses[i] = r.Course
		instructors[r.ID] = r.Instructor
	}

	filename := fmt.Sprintf("courses-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := services.ExportCourses(c.Writer, courses, instructors); err != nil {
		h.log.Error("export courses", zap.Error(err))
	}
}

// GetCourse trả về khoá học kèm toàn bộ module, quiz và assignment.
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	form, err := services.LoadForm(c.Request.Context(), h.db, id, h.log)
	if err != nil {
		respondError(c, "Không tìm thấy khoá học", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course": form})
}

type addCourseInput struct {
	Title            string              `json:"title" binding:"required"`
	Slug             string              `json:"slug"`
	ShortDescription string              `json:"short_description"`
	Description      string              `json:"description"`
	Category         string              `json:"category"`
	Subcategory      string              `json:"subcategory"`
	Level            string              `json:"level"`
	Language         string              `json:"language"`
	Price            float64             `json:"price"`
	OriginalPrice    float64             `json:"originalPrice"`
	Status           models.CourseStatus `json:"status"`
}

func (h *CourseHandler) AddCourse(c *gin.Context) {
	var input addCourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	course, err := h.cache.AddCourse(c.Request.Context(), models.Course{
		Title:            input.Title,
		Slug:             strings.TrimSpace(input.Slug),
		ShortDescription: input.ShortDescription,
		Description:      input.Description,
		Category:         input.Category,
		Subcategory:      input.Subcategory,
		Level:            input.Level,
		Language:         input.Language,
		Price:            input.Price,
		OriginalPrice:    input.OriginalPrice,
		Status:           input.Status,
	})
	if err != nil {
		respondError(c, "Không thể tạo khoá học", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Tạo khoá học thành công",
		"course":  course,
	})
}

func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var patch store.CoursePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.cache.UpdateCourse(c.Request.Context(), id, patch); err != nil {
		respondError(c, "Không thể cập nhật khoá học", err)
		return
	}
	row, _ := h.cache.Course(id)
	c.JSON(http.StatusOK, gin.H{
		"message": "Cập nhật khoá học thành công",
		"course":  row,
	})
}

func (h *CourseHandler) PublishCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if err := h.cache.PublishCourse(c.Request.Context(), id); err != nil {
		respondError(c, "Không thể xuất bản khoá học", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã xuất bản khoá học", "status": models.StatusPublished})
}

func (h *CourseHandler) UnpublishCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if err := h.cache.UnpublishCourse(c.Request.Context(), id); err != nil {
		respondError(c, "Không thể gỡ xuất bản khoá học", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã chuyển khoá học về bản nháp", "status": models.StatusDraft})
}

func (h *CourseHandler) ToggleCourseStatus(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if _, err := h.cache.Initialize(c.Request.Context()); err != nil {
		respondError(c, "Không thể tải danh sách khoá học", err)
		return
	}
	status, err := h.cache.ToggleCourseStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Không thể đổi trạng thái khoá học", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cập nhật trạng thái thành công", "status": status})
}

func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if err := h.cache.DeleteCourse(c.Request.Context(), id); err != nil {
		respondError(c, "Không thể xoá khoá học", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Xoá khoá học thành công"})
}

func (h *CourseHandler) RefreshCourses(c *gin.Context) {
	if err := h.cache.Refresh(c.Request.Context()); err != nil {
		respondError(c, "Không thể tải lại dữ liệu", err)
		return
	}
	snap := h.cache.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"message":    "Đã tải lại dữ liệu",
		"total":      len(snap.Courses),
		"fetched_at": snap.FetchedAt,
	})
}

func (h *CourseHandler) GetCategories(c *gin.Context) {
	if _, err := h.cache.Initialize(c.Request.Context()); err != nil {
		respondError(c, "Không thể tải danh mục", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.cache.Snapshot().Categories})
}

func (h *CourseHandler) GetInstructors(c *gin.Context) {
	if _, err := h.cache.Initialize(c.Request.Context()); err != nil {
		respondError(c, "Không thể tải giảng viên", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.cache.Snapshot().Instructors})
}
