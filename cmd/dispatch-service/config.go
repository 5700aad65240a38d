package main

import (
	"fmt"
	"os"
	"time"

	"rivoj/internal/common/cache"
	"rivoj/internal/common/db"
	"rivoj/internal/common/mq"
	"rivoj/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultJudgeTopic   = "judge.task"
	defaultOptionsTTL   = 30 * time.Second
	defaultWorkerRPC    = 120 * time.Second
	defaultSPJRPC       = 30 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"clientID"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
	MaxWait       time.Duration `yaml:"maxWait"`
	BatchSize     int           `yaml:"batchSize"`
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	Topic         string        `yaml:"topic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
	DeadLetter    string        `yaml:"deadLetterTopic"`
}

func (c KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      c.Brokers,
		ClientID:     c.ClientID,
		MinBytes:     c.MinBytes,
		MaxBytes:     c.MaxBytes,
		MaxWait:      c.MaxWait,
		BatchSize:    c.BatchSize,
		BatchTimeout: c.BatchTimeout,
		DialTimeout:  c.DialTimeout,
	}
}

// RPCConfig holds worker RPC settings.
type RPCConfig struct {
	JudgeTimeout time.Duration `yaml:"judgeTimeout"`
	SPJTimeout   time.Duration `yaml:"spjTimeout"`
}

// AuthConfig holds admin API and worker token settings.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwtSecret"`
	JudgeToken string `yaml:"judgeToken"`
}

// OptionsConfig holds runtime options cache settings.
type OptionsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AppConfig holds dispatch-service config.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	Database db.MySQLConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	RPC      RPCConfig         `yaml:"rpc"`
	Auth     AuthConfig        `yaml:"auth"`
	Options  OptionsConfig     `yaml:"options"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth jwtSecret is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = defaultJudgeTopic
	}
	if cfg.Options.TTL == 0 {
		cfg.Options.TTL = defaultOptionsTTL
	}
	if cfg.RPC.JudgeTimeout == 0 {
		cfg.RPC.JudgeTimeout = defaultWorkerRPC
	}
	if cfg.RPC.SPJTimeout == 0 {
		cfg.RPC.SPJTimeout = defaultSPJRPC
	}
	return &cfg, nil
}
