// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
// 应用目录 (每个 App 的选项列表与 profile) 见 catalog.go。
package config

import (
	"time"

	"github.com/BxNxM/even-dev/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// Panel (浏览器控制面板)
	ListenAddr           string `env:"EVEN_LISTEN_ADDR" default:"127.0.0.1:5180"`
	PanelSSEKeepaliveSec int    `env:"PANEL_SSE_KEEPALIVE_SEC" default:"30" min:"1"`
	PanelMaxClients      int    `env:"PANEL_MAX_CLIENTS" default:"32" min:"1"`

	// Bridge (远端眼镜显示)
	BridgeURL              string `env:"BRIDGE_URL" default:"ws://127.0.0.1:5190/bridge"`
	BridgeConnectTimeoutMS int    `env:"BRIDGE_CONNECT_TIMEOUT_MS" default:"4000" min:"1"`
	BridgeAutoConnect      bool   `env:"BRIDGE_AUTOCONNECT" default:"true"`
	BridgeReconnectSec     int    `env:"BRIDGE_RECONNECT_SEC" default:"10" min:"0"`
	BridgeReconnectMaxSec  int    `env:"BRIDGE_RECONNECT_MAX_SEC" default:"120" min:"1"`

	// 应用目录
	AppCatalog string `env:"APP_CATALOG" default:"apps.yaml"`
	AppName    string `env:"APP_NAME"`

	// 日志
	LogLevel     string `env:"LOG_LEVEL" default:"INFO"`
	LogEnv       string `env:"LOG_ENV" default:"production"`
	LogDir       string `env:"LOG_DIR" default:".even/logs"`
	DiagRingSize int    `env:"DIAG_RING_SIZE" default:"500" min:"1"`

	// PostgreSQL (可选: 诊断日志落库)
	PostgresConnStr     string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema      string `env:"POSTGRES_SCHEMA" default:"public"`
	PostgresPoolMinSize int    `env:"POSTGRES_POOL_MIN_SIZE" default:"1" min:"1"`
	PostgresPoolMaxSize int    `env:"POSTGRES_POOL_MAX_SIZE" default:"4" min:"1"`
	MigrationsDir       string `env:"MIGRATIONS_DIR" default:"migrations"`
	MigrationNonFatal   bool   `env:"MIGRATION_NON_FATAL" default:"true"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}

// ConnectBudget 返回 bridge 获取预算。
func (c *Config) ConnectBudget() time.Duration {
	return time.Duration(c.BridgeConnectTimeoutMS) * time.Millisecond
}

// ReconnectInterval Mock 模式下重连巡检的基础间隔, 0 表示不自动重连。
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.BridgeReconnectSec) * time.Second
}

// ReconnectMax 重连退避上限。
func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.BridgeReconnectMaxSec) * time.Second
}

// PanelKeepalive 返回 SSE 保活间隔。
func (c *Config) PanelKeepalive() time.Duration {
	return time.Duration(c.PanelSSEKeepaliveSec) * time.Second
}

// DatabaseEnabled 是否配置了 PostgreSQL。
func (c *Config) DatabaseEnabled() bool { return c.PostgresConnStr != "" }
