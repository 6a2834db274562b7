package common

import (
	commonHandler "seest/internal/pkg/common"
	"seest/internal/pkg/registry"
	"seest/internal/pkg/uploader"
	"seest/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommonModule 实时推送流与媒体上传
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	if ctx.Changes != nil {
		ctx.Router.GET("/realtime", ctx.Auth, commonHandler.Stream(ctx.Changes))
	}

	cfg := ctx.Config.OSS
	if !cfg.Enabled() {
		return nil
	}
	up, err := uploader.NewAliyunOSSUploader(cfg)
	if err != nil {
		// 上传不可用时客户端仍可提交 data URI
		logger.Log.Warn("OSS uploader disabled", zap.Error(err))
		return nil
	}
	setupUploadRoute(ctx.Router, ctx.Auth, up, cfg.MaxSizeMB<<20)
	return nil
}

func setupUploadRoute(r *gin.Engine, auth gin.HandlerFunc, up uploader.Uploader, maxBytes int64) {
	r.POST("/upload", auth, commonHandler.UploadFile(up, maxBytes))
}
