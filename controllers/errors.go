package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/store"
	"github.com/vnkhanh/e-course-backend/wizard"
)

var badInput = []error{
	wizard.ErrUnknownField,
	wizard.ErrReadOnlyField,
	wizard.ErrNotAList,
	wizard.ErrIndexOutOfRange,
	wizard.ErrInvalidValue,
	wizard.ErrMinOptions,
	wizard.ErrImmutableOptions,
	wizard.ErrNoAsset,
	wizard.ErrBadTarget,
	store.ErrTitleRequired,
}

func statusOf(err error) int {
	var verr *services.ValidationError
	var step *services.StepError
	switch {
	case errors.Is(err, wizard.ErrDraftNotFound),
		errors.Is(err, wizard.ErrNotFound),
		errors.Is(err, services.ErrCourseNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &step):
		return http.StatusUnprocessableEntity
	}
	for _, target := range badInput {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// respondError trả lỗi dạng {"error": ...} với status code tương ứng.
func respondError(c *gin.Context, message string, err error) {
	body := gin.H{"error": message, "detail": err.Error()}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["missing"] = verr.Missing
	}
	var step *services.StepError
	if errors.As(err, &step) {
		body["step"] = step.Step
	}
	c.JSON(statusOf(err), body)
}

func courseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID khoá học không hợp lệ"})
		return 0, false
	}
	return id, true
}
