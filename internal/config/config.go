// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 每个字段都可以用环境变量覆盖，例如 server.port 对应 SERVER_PORT。
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Bus        BusConfig        `mapstructure:"bus"`
	Cache      CacheConfig      `mapstructure:"cache"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Startup    StartupConfig    `mapstructure:"startup"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// BusConfig 存储 Bus Client 的两条传输路径配置（spec §4.A）：
// Kafka 承载持久化发布，Redis 承载按 ticket 的临时发布/订阅。
type BusConfig struct {
	KafkaBrokers []string    `mapstructure:"kafka_brokers"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// CacheConfig 存储 Session Cache 的 Redis 连接与热缓冲参数（spec §4.B）。
type CacheConfig struct {
	Redis       RedisConfig   `mapstructure:"redis"`
	HotMsgLimit int           `mapstructure:"hot_msg_limit"`
	HotTTL      time.Duration `mapstructure:"hot_ttl"`
}

// RedisConfig 存储一个 Redis 连接的配置。Bus 和 Cache 默认指向同一个
// Redis 实例，但配置上允许分开，便于在更大部署中把临时发布/订阅流量和
// 持久化的会话状态隔离到不同实例。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 Auth Verifier 校验令牌所需的配置（spec §4.C）。
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Alg    string `mapstructure:"alg"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DispatcherConfig 存储 Streaming Dispatcher 的主题名与超时参数
// （spec §4.D、§5 的超时默认值）。
type DispatcherConfig struct {
	RequestSubject   string        `mapstructure:"request_subject"`
	RawMemorySubject string        `mapstructure:"raw_memory_subject"`
	IdleChunkTimeout time.Duration `mapstructure:"idle_chunk_timeout"`
	TotalTicketTTL   time.Duration `mapstructure:"total_ticket_ttl"`
	DrainTimeout     time.Duration `mapstructure:"drain_timeout"`
	AdmissionTimeout time.Duration `mapstructure:"admission_timeout"`
}

// WebSocketConfig 存储 WebSocket Edge 的路径与保活参数（spec §4.E）。
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

// StartupConfig 控制启动时对下游依赖的可用性检查是否严格。严格模式下，
// Bus 或 Cache 的 Redis 连接在启动时不可达会直接让进程以退出码 3 退出；
// 宽松模式下不做启动检查，进程以降级状态启动，由运行期的连接重试恢复。
type StartupConfig struct {
	Strict bool `mapstructure:"strict"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("bus.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("bus.redis.addr", "localhost:6379")
	v.SetDefault("bus.redis.db", 0)

	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.hot_msg_limit", 200)
	v.SetDefault("cache.hot_ttl", 60*time.Minute)

	v.SetDefault("jwt.alg", "HS256")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("dispatcher.request_subject", "chat.request")
	v.SetDefault("dispatcher.raw_memory_subject", "memory.raw")
	v.SetDefault("dispatcher.idle_chunk_timeout", 120*time.Second)
	v.SetDefault("dispatcher.total_ticket_ttl", 600*time.Second)
	v.SetDefault("dispatcher.drain_timeout", 10*time.Second)
	v.SetDefault("dispatcher.admission_timeout", 30*time.Second)

	v.SetDefault("websocket.path", "/ws/chat")
	v.SetDefault("websocket.keepalive_interval", 30*time.Second)

	v.SetDefault("startup.strict", false)
}

// bindSpecEnvVars binds the literal environment variable names spec.md §6's
// configuration surface table documents (BUS_URL, CACHE_URL, ...) onto the
// nested mapstructure keys they actually control. AutomaticEnv alone only
// reaches a key via its dotted path (e.g. CACHE_HOT_MSG_LIMIT); the table
// promises the flatter names operators would actually set, so each one
// needs its own explicit BindEnv.
func bindSpecEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"bus.redis.addr":                "BUS_URL",
		"cache.redis.addr":              "CACHE_URL",
		"jwt.secret":                    "JWT_SECRET",
		"jwt.alg":                       "JWT_ALG",
		"dispatcher.request_subject":    "REQUEST_SUBJECT",
		"dispatcher.raw_memory_subject": "RAW_MEMORY_SUBJECT",
		"cache.hot_msg_limit":           "HOT_MSG_LIMIT",
		"cache.hot_ttl_min":             "HOT_TTL_MIN",
		"dispatcher.idle_chunk_timeout": "IDLE_CHUNK_TIMEOUT",
		"dispatcher.total_ticket_ttl":   "TOTAL_TICKET_TIMEOUT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Init 从 configPath 读取 YAML 配置，再用环境变量覆盖同名项，最终解析到
// Conf。配置文件缺失时不是致命错误——环境变量与默认值本身可以构成一份
// 完整配置，这在容器化部署里是常态。
func Init(configPath string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindSpecEnvVars(v); err != nil {
		return fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := v.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	// HOT_TTL_MIN is documented as a bare integer count of minutes, not a
	// duration string, so it can't flow through HotTTL's time.Duration
	// field via mapstructure the way the other bound keys do.
	if v.IsSet("cache.hot_ttl_min") {
		Conf.Cache.HotTTL = time.Duration(v.GetInt("cache.hot_ttl_min")) * time.Minute
	}

	return nil
}
