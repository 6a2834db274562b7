package registry

import (
	"context"
	"fmt"
	"sort"

	notificationModel "seest/internal/domain/notification/model"
	"seest/internal/pkg/config"
	"seest/internal/pkg/push"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/worker"
	"seest/pkg/cache"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Notifier 通知发送，由 notification 模块提供
type Notifier interface {
	Notify(ctx context.Context, d notificationModel.Draft) error
	NotifyMany(ctx context.Context, recipients []string, d notificationModel.Draft) error
}

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Config *config.Config
	DB     *gorm.DB
	SQL    *sqlx.DB
	Redis  *redis.Client
	Router *gin.Engine
	Cache  cache.CacheService

	// Feed 服务写入后发布变更；Changes 供推送流订阅
	Feed    realtime.Publisher
	Changes realtime.Source

	Pool   *worker.WorkerPool
	Pusher push.Pusher // 未配置时为空

	// 以下由优先级更高的模块注入
	Auth     gin.HandlerFunc
	Notifier Notifier
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// Sorted 按优先级排序，优先级相同时按名称
func Sorted() []Module {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range Sorted() {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}
	return nil
}
