package services

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/utils"
)

type Storage interface {
	Upload(ctx context.Context, bucket, path string, data io.Reader, opts utils.UploadOptions) error
	PublicURL(bucket, path string) string
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// RemoveMedia deletes the storage objects behind public URLs. URLs that do not
// point into storage (external video links) are skipped. Failures are logged,
// never returned.
func RemoveMedia(ctx context.Context, st Storage, urls []string, log *zap.Logger) {
	byBucket := map[string][]string{}
	for _, u := range urls {
		if u == "" {
			continue
		}
		bucket, object, err := utils.ParsePublicURL(u)
		if err != nil {
			continue
		}
		byBucket[bucket] = append(byBucket[bucket], object)
	}
	for bucket, objects := range byBucket {
		if err := st.Remove(ctx, bucket, objects...); err != nil {
			log.Warn("remove media failed", zap.String("bucket", bucket), zap.Strings("objects", objects), zap.Error(err))
		}
	}
}
