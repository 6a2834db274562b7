package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"seest/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("only image and video files can be uploaded")

// Uploader 上传媒体文件并返回可公开访问的 URL
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// MediaKind 按 Content-Type 判断媒体类型，返回 image 或 video
func MediaKind(contentType string) (string, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image", nil
	case strings.HasPrefix(contentType, "video/"):
		return "video", nil
	}
	return "", ErrUnsupportedType
}

// ObjectKey 生成对象名：YYYYMMDD/uuid.ext
func ObjectKey(now time.Time, filename string) string {
	return fmt.Sprintf("%s/%s%s", now.Format("20060102"), uuid.New().String(), strings.ToLower(filepath.Ext(filename)))
}

type AliyunOSSUploader struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

func NewAliyunOSSUploader(cfg config.OSSConfig) (*AliyunOSSUploader, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}

	return &AliyunOSSUploader{
		bucket: bucket,
		config: cfg,
	}, nil
}

func (u *AliyunOSSUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if _, err := MediaKind(contentType); err != nil {
		return "", err
	}

	key := ObjectKey(time.Now(), filename)
	if err := u.bucket.PutObject(key, r, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return u.PublicURL(key), nil
}

// PublicURL bucket 需为公共读或挂载 CDN
func (u *AliyunOSSUploader) PublicURL(key string) string {
	if u.config.BaseURL != "" {
		return strings.TrimRight(u.config.BaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.%s/%s", u.config.BucketName, u.config.Endpoint, key)
}
