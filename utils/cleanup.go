package utils

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CleanupSchedule chạy dọn dẹp vào phút 0 mỗi giờ.
const CleanupSchedule = "0 * * * *"

// Sweeper bỏ các bản nháp không được chỉnh sửa lâu hơn maxAge.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// CleanupDrafts xoá các bản nháp khoá học đã hết hạn.
func CleanupDrafts(drafts Sweeper, maxAge time.Duration, log *zap.Logger) int {
	removed := drafts.Sweep(maxAge)
	if removed > 0 {
		log.Info("Đã xoá bản nháp hết hạn", zap.Int("count", removed), zap.Duration("max_age", maxAge))
	}
	return removed
}

// StartCleanupJob chạy cleanup job định kỳ, trả về cron để dừng khi tắt server.
func StartCleanupJob(drafts Sweeper, maxAge time.Duration, log *zap.Logger) (*cron.Cron, error) {
	// Chạy cleanup ngay lần đầu khi khởi động
	CleanupDrafts(drafts, maxAge, log)

	c := cron.New()
	if _, err := c.AddFunc(CleanupSchedule, func() {
		CleanupDrafts(drafts, maxAge, log)
	}); err != nil {
		return nil, err
	}
	c.Start()

	log.Info("Cleanup job đã được khởi động", zap.String("schedule", CleanupSchedule))
	return c, nil
}
