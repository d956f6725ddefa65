package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义分拣后端 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "127.0.0.1"（桌面端本地服务）
	Port int    // 监听端口，默认 8000
}

// WebConfig 定义账号/计费 Web 服务器的监听配置参数
type WebConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// IMAPConfig 定义上游邮箱的 IMAP 拉取配置
type IMAPConfig struct {
	Address  string // IMAP 服务地址，格式 "host:port"，默认 "outlook.office365.com:993"
	Username string // 登录账号
	Password string // 登录密码或应用专用密码
	Folder   string // 拉取的文件夹，默认 "INBOX"
	UseTLS   bool   // 是否使用隐式 TLS，默认 true
}

// ArchiveConfig 定义 .eml 落盘归档配置
type ArchiveConfig struct {
	Dir     string // 归档目录，默认 "./archive"
	OpenCmd string // 打开 .eml 的外部命令，留空使用系统默认程序
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "outprio"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// StripeConfig 定义 Stripe 订阅支付配置
type StripeConfig struct {
	SecretKey      string // Stripe API 密钥
	WebhookSecret  string // Webhook 签名校验密钥
	MonthlyPriceID string // 月付价格 ID
	AnnualPriceID  string // 年付价格 ID
	SuccessURL     string // 支付成功跳转地址
	CancelURL      string // 支付取消跳转地址
}

// OTPConfig 定义邮箱验证码配置
type OTPConfig struct {
	Expiry time.Duration // 验证码有效期，默认 10 分钟
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // 分拣后端配置
	Web      WebConfig      // 账号/计费服务配置
	IMAP     IMAPConfig     // IMAP 拉取配置
	Archive  ArchiveConfig  // .eml 归档配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	Stripe   StripeConfig   // Stripe 支付配置
	OTP      OTPConfig      // 验证码配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: OUTPRIO_
// 例如: OUTPRIO_SERVER_PORT, OUTPRIO_IMAP_USERNAME
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("outprio")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("imap.address", "outlook.office365.com:993")
	viper.SetDefault("imap.username", "")
	viper.SetDefault("imap.password", "")
	viper.SetDefault("imap.folder", "INBOX")
	viper.SetDefault("imap.use_tls", true)
	viper.SetDefault("archive.dir", "./archive")
	viper.SetDefault("archive.open_cmd", "")
	viper.SetDefault("cors.allowed_origins", "http://localhost:5173")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "outprio")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("stripe.secret_key", "")
	viper.SetDefault("stripe.webhook_secret", "")
	viper.SetDefault("stripe.monthly_price_id", "")
	viper.SetDefault("stripe.annual_price_id", "")
	viper.SetDefault("stripe.success_url", "http://localhost:5173/billing/success")
	viper.SetDefault("stripe.cancel_url", "http://localhost:5173/billing/cancel")
	viper.SetDefault("otp.expiry", "10m")

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	otpExpiry, err := time.ParseDuration(viper.GetString("otp.expiry"))
	if err != nil {
		otpExpiry = 10 * time.Minute
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set OUTPRIO_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Web: WebConfig{
			Host: viper.GetString("web.host"),
			Port: viper.GetInt("web.port"),
		},
		IMAP: IMAPConfig{
			Address:  viper.GetString("imap.address"),
			Username: viper.GetString("imap.username"),
			Password: viper.GetString("imap.password"),
			Folder:   viper.GetString("imap.folder"),
			UseTLS:   viper.GetBool("imap.use_tls"),
		},
		Archive: ArchiveConfig{
			Dir:     viper.GetString("archive.dir"),
			OpenCmd: viper.GetString("archive.open_cmd"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Stripe: StripeConfig{
			SecretKey:      viper.GetString("stripe.secret_key"),
			WebhookSecret:  viper.GetString("stripe.webhook_secret"),
			MonthlyPriceID: viper.GetString("stripe.monthly_price_id"),
			AnnualPriceID:  viper.GetString("stripe.annual_price_id"),
			SuccessURL:     viper.GetString("stripe.success_url"),
			CancelURL:      viper.GetString("stripe.cancel_url"),
		},
		OTP: OTPConfig{
			Expiry: otpExpiry,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（从 backend/ 子目录运行时）
//
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
