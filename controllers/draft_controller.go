package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/wizard"
)

// DraftHandler phục vụ form nhiều bước tạo/sửa khoá học. Mỗi bản nháp sống
// trong Registry cho tới khi submit thành công hoặc bị xoá.
type DraftHandler struct {
	drafts    *wizard.Registry
	publisher *services.Publisher
	db        services.Database
	cache     *store.Cache
	maxUpload int64
	log       *zap.Logger
}

func NewDraftHandler(drafts *wizard.Registry, publisher *services.Publisher, db services.Database, cache *store.Cache, maxUploadMB int, log *zap.Logger) *DraftHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DraftHandler{
		drafts:    drafts,
		publisher: publisher,
		db:        db,
		cache:     cache,
		maxUpload: int64(maxUploadMB) << 20,
		log:       log,
	}
}

func draftID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID bản nháp không hợp lệ"})
		return uuid.Nil, false
	}
	return id, true
}

// edit chạy fn trên form của bản nháp rồi trả về kết quả của fn.
func (h *DraftHandler) edit(c *gin.Context, status int, fn func(f *wizard.Form) (any, error)) {
	id, ok := draftID(c)
	if !ok {
		return
	}
	var out any
	err := h.drafts.Update(id, func(d *wizard.Draft) error {
		var err error
		out, err = fn(d.Form)
		return err
	})
	if err != nil {
		respondError(c, "Không thể cập nhật bản nháp", err)
		return
	}
	c.JSON(status, out)
}

func (h *DraftHandler) writeDraft(c *gin.Context, status int, id uuid.UUID) {
	err := h.drafts.Read(id, func(d *wizard.Draft) error {
		body, err := json.Marshal(gin.H{"draft": d})
		if err != nil {
			return err
		}
		c.Data(status, "application/json; charset=utf-8", body)
		return nil
	})
	if err != nil {
		respondError(c, "Không tìm thấy bản nháp", err)
	}
}

func (h *DraftHandler) CreateDraft(c *gin.Context) {
	h.writeDraft(c, http.StatusCreated, h.drafts.Create(wizard.ModeCreate))
}

// EditCourseDraft mở bản nháp chỉnh sửa từ dữ liệu khoá học đã lưu.
func (h *DraftHandler) EditCourseDraft(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	form, err := services.LoadForm(c.Request.Context(), h.db, id, h.log)
	if err != nil {
		respondError(c, "Không thể tải khoá học", err)
		return
	}
	h.writeDraft(c, http.StatusCreated, h.drafts.Put(form))
}

func (h *DraftHandler) GetDraft(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}
	h.writeDraft(c, http.StatusOK, id)
}

func (h *DraftHandler) DeleteDraft(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}
	if !h.drafts.Delete(id) {
		respondError(c, "Không tìm thấy bản nháp", wizard.ErrDraftNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đã xoá bản nháp"})
}

type fieldInput struct {
	Target wizard.Target   `json:"target"`
	Field  string          `json:"field" binding:"required"`
	Value  json.RawMessage `json:"value"`
}

func (h *DraftHandler) SetField(c *gin.Context) {
	var input fieldInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		if err := f.SetField(input.Target, input.Field, input.Value); err != nil {
			return nil, err
		}
		return gin.H{"message": "Đã cập nhật", "course": f.Course}, nil
	})
}

type listInput struct {
	Target wizard.Target `json:"target"`
	Field  string        `json:"field" binding:"required"`
	Op     string        `json:"op" binding:"required,oneof=append set remove"`
	Index  int           `json:"index"`
	Value  string        `json:"value"`
}

// UpdateList thêm, sửa hoặc xoá một phần tử của field dạng danh sách chuỗi.
func (h *DraftHandler) UpdateList(c *gin.Context) {
	var input listInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		index := input.Index
		var err error
		switch input.Op {
		case "append":
			index, err = f.AppendListItem(input.Target, input.Field)
			if err == nil && input.Value != "" {
				err = f.SetListItem(input.Target, input.Field, index, input.Value)
			}
		case "set":
			err = f.SetListItem(input.Target, input.Field, input.Index, input.Value)
		case "remove":
			err = f.RemoveListItem(input.Target, input.Field, input.Index)
		}
		if err != nil {
			return nil, err
		}
		return gin.H{"message": "Đã cập nhật", "index": index}, nil
	})
}

func (h *DraftHandler) AddModule(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(f *wizard.Form) (any, error) {
		return gin.H{"module": f.AddModule()}, nil
	})
}

func (h *DraftHandler) RemoveModule(c *gin.Context) {
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã xoá module"}, f.RemoveModule(c.Param("moduleID"))
	})
}

func (h *DraftHandler) AddLesson(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(f *wizard.Form) (any, error) {
		l, err := f.AddLesson(c.Param("moduleID"))
		return gin.H{"lesson": l}, err
	})
}

func (h *DraftHandler) RemoveLesson(c *gin.Context) {
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã xoá bài học"}, f.RemoveLesson(c.Param("moduleID"), c.Param("lessonID"))
	})
}

func (h *DraftHandler) AddQuiz(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(f *wizard.Form) (any, error) {
		return gin.H{"quiz": f.AddQuiz()}, nil
	})
}

func (h *DraftHandler) RemoveQuiz(c *gin.Context) {
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã xoá quiz"}, f.RemoveQuiz(c.Param("quizID"))
	})
}

func (h *DraftHandler) AddQuestion(c *gin.Context) {
	var input struct {
		Type models.QuestionType `json:"type"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.edit(c, http.StatusCreated, func(f *wizard.Form) (any, error) {
		q, err := f.AddQuestion(c.Param("quizID"), input.Type)
		return gin.H{"question": q}, err
	})
}

func (h *DraftHandler) RemoveQuestion(c *gin.Context) {
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã xoá câu hỏi"}, f.RemoveQuestion(c.Param("quizID"), c.Param("questionID"))
	})
}

func (h *DraftHandler) AddAssignment(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(f *wizard.Form) (any, error) {
		return gin.H{"assignment": f.AddAssignment()}, nil
	})
}

func (h *DraftHandler) RemoveAssignment(c *gin.Context) {
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã xoá bài tập"}, f.RemoveAssignment(c.Param("assignmentID"))
	})
}

// LinkModule gắn quiz hoặc bài tập vào một module theo ID ổn định của module.
func (h *DraftHandler) LinkModule(c *gin.Context) {
	var input struct {
		Target   wizard.Target `json:"target"`
		ModuleID string        `json:"module_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		return gin.H{"message": "Đã liên kết module"}, f.LinkModule(input.Target, input.ModuleID)
	})
}

// UploadFile nhận file (multipart) và giữ trong bản nháp tới khi submit.
func (h *DraftHandler) UploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Thiếu file"})
		return
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File vượt quá %d MB", h.maxUpload>>20)})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không đọc được file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Không đọc được file"})
		return
	}

	target := wizard.Target{
		Kind:     wizard.Kind(c.PostForm("kind")),
		ModuleID: c.PostForm("module_id"),
		LessonID: c.PostForm("lesson_id"),
	}
	pending := wizard.PendingFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        len(data),
		Data:        data,
	}
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		if err := f.AttachFile(target, pending); err != nil {
			return nil, err
		}
		return gin.H{"message": "Đã nhận file", "file": pending}, nil
	})
}

type stepInput struct {
	Action  string         `json:"action" binding:"required,oneof=next prev goto"`
	Section wizard.Section `json:"section"`
}

func stepState(s *wizard.Stepper) gin.H {
	return gin.H{
		"section":   s.Current(),
		"step":      s.Step,
		"position":  s.Position(),
		"total":     s.TotalSteps(),
		"is_final":  s.IsFinalStep(),
		"show_next": s.ShouldShowNextButton(),
	}
}

func (h *DraftHandler) Step(c *gin.Context) {
	var input stepInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.edit(c, http.StatusOK, func(f *wizard.Form) (any, error) {
		switch input.Action {
		case "next":
			f.Steps.NextStep()
		case "prev":
			f.Steps.PrevStep()
		case "goto":
			if err := f.Steps.GoTo(input.Section); err != nil {
				return nil, err
			}
		}
		return gin.H{"steps": stepState(f.Steps)}, nil
	})
}

// SubmitDraft lưu toàn bộ bản nháp. Bản nháp được lấy ra khỏi Registry trong
// lúc submit và chỉ được trả lại nếu submit thất bại.
func (h *DraftHandler) SubmitDraft(c *gin.Context) {
	id, ok := draftID(c)
	if !ok {
		return
	}
	draft, err := h.drafts.Take(id)
	if err != nil {
		respondError(c, "Không tìm thấy bản nháp", err)
		return
	}

	ctx := c.Request.Context()
	var res *services.Result
	if draft.Form.Mode == wizard.ModeEdit {
		res, err = h.publisher.Update(ctx, draft.Form)
	} else {
		res, err = h.publisher.Publish(ctx, draft.Form)
	}
	if err != nil {
		h.drafts.Restore(draft)
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondError(c, "Vui lòng điền đầy đủ thông tin bắt buộc", err)
			return
		}
		respondError(c, "Lưu khoá học thất bại", err)
		return
	}

	h.cache.Invalidate()
	if h.cache.OnChange != nil {
		h.cache.OnChange()
	}

	status, message := http.StatusCreated, "Tạo khoá học thành công"
	if draft.Form.Mode == wizard.ModeEdit {
		status, message = http.StatusOK, "Cập nhật khoá học thành công"
	}
	c.JSON(status, gin.H{"message": message, "result": res})
}
