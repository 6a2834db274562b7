package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppConfig      `mapstructure:"app"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Push     PushConfig     `mapstructure:"push"`
	OSS      OSSConfig      `mapstructure:"oss"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"` // 每个 IP 每秒请求数
	RateBurst      int      `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DSN gorm/pgx 通用的 key=value 连接串
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host + " user=" + c.User + " password=" + c.Password +
		" dbname=" + c.DBName + " port=" + c.Port + " sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}

// URL golang-migrate 使用的 URL 形式
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// RealtimeConfig 变更推送配置
type RealtimeConfig struct {
	Driver         string        `mapstructure:"driver"`  // memory, redis, postgres
	Channel        string        `mapstructure:"channel"` // postgres NOTIFY 频道 / redis 频道前缀
	BufferSize     int           `mapstructure:"buffer_size"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// FeedConfig 动态流配置
type FeedConfig struct {
	Retention  time.Duration `mapstructure:"retention"`
	FetchLimit int           `mapstructure:"fetch_limit"`
}

// WorkerConfig 通知扇出协程池配置
type WorkerConfig struct {
	Num        int `mapstructure:"num"`
	BufferSize int `mapstructure:"buffer_size"`
	MaxRetry   int `mapstructure:"max_retry"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
}

// Enabled 是否配置了移动推送
func (p PushConfig) Enabled() bool {
	return p.AccessKeyID != "" && p.AppKey != 0
}

// OSSConfig 媒体上传，未配置时客户端直接提交 data URI
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	BaseURL         string `mapstructure:"base_url"` // CDN 域名，为空时使用 bucket 公网域名
	MaxSizeMB       int64  `mapstructure:"max_size_mb"`
}

func (o OSSConfig) Enabled() bool {
	return o.Endpoint != "" && o.BucketName != "" && o.AccessKeyID != ""
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	switch c.Realtime.Driver {
	case "memory", "postgres":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis address is required for the redis realtime driver")
		}
	default:
		return errors.New("realtime.driver must be one of memory, redis, postgres")
	}

	if c.Feed.Retention <= 0 {
		return errors.New("feed.retention must be positive")
	}

	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("jwt.expire", 24*7)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("realtime.driver", "redis")
	v.SetDefault("realtime.channel", "seest_changes")
	v.SetDefault("realtime.buffer_size", 64)
	v.SetDefault("realtime.backoff_initial", "500ms")
	v.SetDefault("realtime.backoff_max", "30s")
	v.SetDefault("feed.retention", "24h")
	v.SetDefault("feed.fetch_limit", 100)
	v.SetDefault("worker.num", 4)
	v.SetDefault("worker.buffer_size", 256)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("oss.max_size_mb", 20)
}

// LoadConfig 加载配置
func LoadConfig() {
	// .env 可选，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	v.AutomaticEnv()

	if err := v.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，viper 对嵌套键的环境变量绑定不可靠
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if driver := os.Getenv("REALTIME_DRIVER"); driver != "" {
		GlobalConfig.Realtime.Driver = driver
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
