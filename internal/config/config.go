package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/sportsmeet/listing-chat/pkg/config"
	"github.com/sportsmeet/listing-chat/pkg/database"
	"github.com/sportsmeet/listing-chat/pkg/log"
	"github.com/sportsmeet/listing-chat/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	Database  database.Config
	Redis     RedisConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	// Enabled turns on the multi-instance fan-out backplane.
	Enabled    bool
	InstanceID string             `mapstructure:"instance_id"`
	PubSub     pubsub.RedisConfig `mapstructure:",squash"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	TypingTTL      time.Duration `mapstructure:"typing_ttl"`
}

type ChatConfig struct {
	PageSize      int      `mapstructure:"page_size"`
	MaxMessageLen int      `mapstructure:"max_message_len"`
	BannedWords   []string `mapstructure:"banned_words"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chat")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.typing_ttl", "1s")
	v.SetDefault("chat.page_size", 20)
	v.SetDefault("chat.max_message_len", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "listing-chat")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.instance_id", "INSTANCE_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.TypingTTL = parseDuration(v, "websocket.typing_ttl", time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
