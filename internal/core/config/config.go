package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	ReadTimeoutSec    int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec   int    `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec    int    `mapstructure:"idle_timeout_sec"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
	MaxBodyBytes      int64  `mapstructure:"max_body_bytes"`
	MaxConcurrent     int64  `mapstructure:"max_concurrent"`
}

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"` // 对外访问地址，用于 OAuth 回调
	HTTP    HTTP   `mapstructure:"http"`
}

type FileLog struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type Log struct {
	Level string  `mapstructure:"level"`
	JSON  bool    `mapstructure:"json"`
	File  FileLog `mapstructure:"file"`
}

type Session struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessTokenTTLMin int    `mapstructure:"access_token_ttl_min"`
	CookieName        string `mapstructure:"cookie_name"`
	CookieSecure      bool   `mapstructure:"cookie_secure"`
	Store             string `mapstructure:"store"` // "memory" | "redis"
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type OAuthProvider struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// 以下为空时使用 Google 官方地址
	AuthURL     string `mapstructure:"auth_url"`
	TokenURL    string `mapstructure:"token_url"`
	UserInfoURL string `mapstructure:"user_info_url"`
}

func (p OAuthProvider) Enabled() bool { return p.ClientID != "" }

type OAuth struct {
	Google OAuthProvider `mapstructure:"google"`
}

type Registration struct {
	RollbackOnProfileFailure bool `mapstructure:"rollback_on_profile_failure"`
}

type Config struct {
	App          App          `mapstructure:"app"`
	Log          Log          `mapstructure:"log"`
	Session      Session      `mapstructure:"session"`
	DB           DB           `mapstructure:"db"`
	Redis        Redis        `mapstructure:"redis"`
	OAuth        OAuth        `mapstructure:"oauth"`
	Registration Registration `mapstructure:"registration"`
}

// Load 读取配置，失败直接退出
func Load(path string) *Config {
	c, err := Read(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return c
}

// Read 读取 yaml + APP_* 环境变量覆盖
func Read(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Session.Secret == "" {
		return nil, fmt.Errorf("session.secret is required")
	}
	return &c, nil
}

// 每个 key 都要有默认值，否则 AutomaticEnv 对 Unmarshal 不生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gin-todo-lists")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.base_url", "http://127.0.0.1:8080")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout_sec", 5)
	v.SetDefault("app.http.write_timeout_sec", 10)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.http.request_timeout_sec", 10)
	v.SetDefault("app.http.max_body_bytes", 1<<20)
	v.SetDefault("app.http.max_concurrent", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "gin-todo-lists")
	v.SetDefault("session.access_token_ttl_min", 60*24*7)
	v.SetDefault("session.cookie_name", "todo_session")
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.store", "memory")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/todo.db")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("oauth.google.client_id", "")
	v.SetDefault("oauth.google.client_secret", "")
	v.SetDefault("oauth.google.auth_url", "")
	v.SetDefault("oauth.google.token_url", "")
	v.SetDefault("oauth.google.user_info_url", "")

	v.SetDefault("registration.rollback_on_profile_failure", true)
}
