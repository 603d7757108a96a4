package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in minimal containers

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Journal  JournalConfig
	LogMode  string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	journal, err := loadJournalConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Database: database,
		Auth:     auth,
		Journal:  journal,
		LogMode:  getEnvOrDefault("LOG_MODE", "development"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr          string
	AllowedOrigin string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origin := getEnvOrDefault("CORS_ALLOWED_ORIGIN", "*")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigin: origin}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigin: origin}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// ChatTimeout 限制一次陪伴回复或心情分类的总时长，流式回复同样受限。
	ChatTimeout time.Duration

	// MoodClassifier 打开后心情推荐优先走大模型，失败时回退到关键词规则。
	MoodClassifier bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark model is not configured: set ARK_MODEL and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	moodClassifier, err := parseBoolEnv("MOOD_CLASSIFIER_ENABLED", false)
	if err != nil {
		return AIConfig{}, err
	}

	chatTimeout, err := parseSecondsEnv("CHAT_TIMEOUT_SECONDS", 30)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		ChatTimeout: chatTimeout,

		MoodClassifier: moodClassifier,
	}, nil
}

// DatabaseConfig 描述数据库连接。
type DatabaseConfig struct {
	Driver string
	URL    string
	Debug  bool
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "sqlite"))
	switch driver {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_DRIVER value: %q", driver)
	}

	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		if strings.HasPrefix(driver, "postgres") {
			return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required for driver %s", driver)
		}
		url = "file:campanio.db?_foreign_keys=on"
	}

	debug, err := parseBoolEnv("DATABASE_DEBUG", false)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{Driver: driver, URL: url, Debug: debug}, nil
}

// AuthConfig 描述会话校验方式。会话由外部登录服务签发，这里只负责校验。
type AuthConfig struct {
	JWTSecret  string
	RedisURL   string
	CookieName string
}

// Enabled 表示至少配置了一种会话校验方式。
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != "" || c.RedisURL != ""
}

func loadAuthConfig() (AuthConfig, error) {
	cfg := AuthConfig{
		JWTSecret:  strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		RedisURL:   strings.TrimSpace(os.Getenv("AUTH_REDIS_URL")),
		CookieName: getEnvOrDefault("AUTH_COOKIE_NAME", "session_token"),
	}
	if !cfg.Enabled() {
		return AuthConfig{}, fmt.Errorf("no session verifier configured: set AUTH_JWT_SECRET or AUTH_REDIS_URL")
	}
	return cfg, nil
}

// JournalConfig 控制日记与反思生成。
type JournalConfig struct {
	Location          *time.Location
	ReflectionTimeout time.Duration
}

func loadJournalConfig() (JournalConfig, error) {
	tz := getEnvOrDefault("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return JournalConfig{}, fmt.Errorf("invalid APP_TIMEZONE value %q: %w", tz, err)
	}

	timeout, err := parseSecondsEnv("REFLECTION_TIMEOUT_SECONDS", 30)
	if err != nil {
		return JournalConfig{}, err
	}

	return JournalConfig{
		Location:          loc,
		ReflectionTimeout: timeout,
	}, nil
}

// parseSecondsEnv 读取一个正整数秒数，未设置时使用默认值。
func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds := defaultSeconds
	if override, err := parseOptionalIntEnv(key); err != nil {
		return 0, err
	} else if override != nil {
		if *override < 1 {
			return 0, fmt.Errorf("invalid %s value: %d", key, *override)
		}
		seconds = *override
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
