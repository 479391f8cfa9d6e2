package utils

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	storage "github.com/supabase-community/storage-go"
)

const objectPrefix = "/storage/v1/object/"

type UploadOptions struct {
	CacheControl string
	ContentType  string
	Upsert       bool
}

// SupabaseStorage uploads course media to Supabase Storage buckets.
type SupabaseStorage struct {
	client  *storage.Client
	baseURL string
}

func NewSupabaseStorage(supabaseURL, supabaseKey string) *SupabaseStorage {
	base := strings.TrimRight(supabaseURL, "/")
	return &SupabaseStorage{
		client:  storage.NewClient(base+"/storage/v1", supabaseKey, nil),
		baseURL: base,
	}
}

func (s *SupabaseStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fileOptions := storage.FileOptions{
		CacheControl: &opts.CacheControl,
		Upsert:       &opts.Upsert,
	}
	if opts.ContentType != "" {
		fileOptions.ContentType = &opts.ContentType
	}
	_, err := s.client.UploadFile(bucket, path, data, fileOptions)
	return err
}

// PublicURL: <SUPABASE_URL>/storage/v1/object/public/<bucket>/<path>
func (s *SupabaseStorage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s%spublic/%s/%s", s.baseURL, objectPrefix, bucket, path)
}

func (s *SupabaseStorage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.RemoveFile(bucket, paths)
	return err
}

// ObjectPath namespaces an upload under folder with a millisecond timestamp
// prefix: <folder>/<unix-ms>-<slugged-name><ext>.
func ObjectPath(folder, filename string, at time.Time) string {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	name := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("%s/%d-%s%s", folder, at.UnixMilli(), name, ext)
}

// ParsePublicURL lấy bucket và object path từ một URL chứa "/storage/v1/object/".
func ParsePublicURL(publicURL string) (bucket, object string, err error) {
	idx := strings.Index(publicURL, objectPrefix)
	if idx == -1 {
		return "", "", fmt.Errorf("không xác định được đường dẫn object trong URL: %s", publicURL)
	}

	rest := publicURL[idx+len(objectPrefix):]
	rest = strings.TrimPrefix(rest, "public/")

	// rest => "<bucket>/<path/to/object...>"
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("không parse được bucket/object từ URL: %s", publicURL)
	}
	bucket = parts[0]
	object = parts[1]
	if qIdx := strings.Index(object, "?"); qIdx != -1 {
		object = object[:qIdx]
	}
	if u, err := url.PathUnescape(object); err == nil {
		object = u
	}
	return bucket, object, nil
}
