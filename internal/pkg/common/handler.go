package handler

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"sync"

	"seest/internal/pkg/middleware"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/uploader"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxUploadFiles 单次上传文件数上限，与动态的图片数上限一致
const MaxUploadFiles = 5

// ownerFields 私有表中可以读取该行的用户字段
var ownerFields = map[string][]string{
	"messages":      {"sender_id", "receiver_id"},
	"notifications": {"recipient_id"},
}

// ownerOnlyRows 只有本人能看到行数据的表，其他用户只收到 ID 并重新拉取
var ownerOnlyRows = map[string]string{
	"saved_posts": "user_id",
}

// PrivacyGuard 私信只推送给收发双方，通知只推送给接收人；
// 收藏行只对本人携带数据，匿名提问对作者以外的用户去掉 user_id。
// 无行数据的变更只带 ID，客户端会重新拉取，照常投递。
func PrivacyGuard(userID string, c realtime.Change) (realtime.Change, bool) {
	if len(c.Record) == 0 {
		return c, true
	}

	var row map[string]interface{}
	if err := json.Unmarshal(c.Record, &row); err != nil {
		return c, false
	}

	if fields, private := ownerFields[c.Table]; private {
		for _, f := range fields {
			if v, ok := row[f].(string); ok && v == userID {
				return c, true
			}
		}
		return c, false
	}

	if field, ok := ownerOnlyRows[c.Table]; ok {
		if v, _ := row[field].(string); v != userID {
			c.Record = nil
		}
		return c, true
	}

	if c.Table == "posts" && row["post_type"] == "ask" {
		if v, _ := row["user_id"].(string); v != userID {
			delete(row, "user_id")
			data, err := json.Marshal(row)
			if err != nil {
				return c, false
			}
			c.Record = data
		}
	}
	return c, true
}

// Stream 变更推送流
// @Summary 订阅实时变更 (websocket)
// @Tags Realtime
// @Router /realtime [get]
func Stream(src realtime.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		realtime.ServeStream(c.Writer, c.Request, src, middleware.CurrentUserID(c), PrivacyGuard)
	}
}

// UploadFile 上传文件 (支持批量)
// @Summary 上传媒体文件到 OSS (支持批量)
// @Tags Common
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files"
// @Success 200 {object} response.Response{data=[]string} "URLs"
// @Router /upload [post]
func UploadFile(up uploader.Uploader, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No files uploaded")
			return
		}
		if len(files) > MaxUploadFiles {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Too many files")
			return
		}
		for _, f := range files {
			if _, err := uploader.MediaKind(f.Header.Get("Content-Type")); err != nil {
				response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
				return
			}
			if maxBytes > 0 && f.Size > maxBytes {
				response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "File too large: "+f.Filename)
				return
			}
		}

		urls, err := uploadAll(c.Request.Context(), up, files)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Upload failed: "+err.Error())
			return
		}
		response.Success(c, urls)
	}
}

// uploadAll 并发上传，结果顺序与请求一致
func uploadAll(ctx context.Context, up uploader.Uploader, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, len(files))

	var wg sync.WaitGroup
	var errOnce sync.Once
	var uploadErr error

	sem := make(chan struct{}, 3)

	for i, file := range files {
		wg.Add(1)
		go func(index int, f *multipart.FileHeader) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			src, err := f.Open()
			if err != nil {
				errOnce.Do(func() { uploadErr = err })
				return
			}
			defer src.Close()

			url, err := up.Upload(ctx, f.Filename, f.Header.Get("Content-Type"), src)
			if err != nil {
				errOnce.Do(func() { uploadErr = err })
				return
			}
			urls[index] = url
		}(i, file)
	}

	wg.Wait()

	if uploadErr != nil {
		return nil, uploadErr
	}
	return urls, nil
}
