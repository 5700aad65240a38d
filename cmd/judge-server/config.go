package main

import (
	"fmt"
	"os"
	"time"

	"rivoj/internal/common/cache"
	"rivoj/internal/common/storage"
	"rivoj/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:12358"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultWorkspaceDir = "/judger/run"
	defaultSPJSrcDir    = "/judger/spj/src"
	defaultSPJExeDir    = "/judger/spj/exe"
	defaultCacheDir     = "/judger/testdata"
	defaultCacheTTL     = 24 * time.Hour
	defaultLockWait     = time.Minute
	defaultCacheEntries = 256
	defaultCacheBytes   = 4 << 30
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// CacheConfig holds local test data cache settings.
type CacheConfig struct {
	RootDir    string        `yaml:"rootDir"`
	TTL        time.Duration `yaml:"ttl"`
	LockWait   time.Duration `yaml:"lockWait"`
	MaxEntries int           `yaml:"maxEntries"`
	MaxBytes   int64         `yaml:"maxBytes"`
}

// JudgeConfig holds judging workspace settings.
type JudgeConfig struct {
	WorkspaceDir string `yaml:"workspaceDir"`
	SPJSrcDir    string `yaml:"spjSrcDir"`
	SPJExeDir    string `yaml:"spjExeDir"`
	DebugMode    bool   `yaml:"debugMode"`
	Parallelism  int    `yaml:"parallelism"`
}

// SandboxConfig holds sandbox helper settings.
type SandboxConfig struct {
	HelperPath string `yaml:"helperPath"`
}

// UsersConfig maps the three privilege-separated accounts runs execute as.
type UsersConfig struct {
	RunUID      int `yaml:"runUID"`
	RunGID      int `yaml:"runGID"`
	CompilerUID int `yaml:"compilerUID"`
	CompilerGID int `yaml:"compilerGID"`
	SPJUID      int `yaml:"spjUID"`
	SPJGID      int `yaml:"spjGID"`
}

// HeartbeatConfig holds dispatcher registration settings.
type HeartbeatConfig struct {
	DispatchURL string        `yaml:"dispatchURL"`
	ServiceURL  string        `yaml:"serviceURL"`
	Interval    time.Duration `yaml:"interval"`
}

// AppConfig holds judge-server config.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Cache     CacheConfig         `yaml:"cache"`
	Judge     JudgeConfig         `yaml:"judge"`
	Sandbox   SandboxConfig       `yaml:"sandbox"`
	Users     UsersConfig         `yaml:"users"`
	Heartbeat HeartbeatConfig     `yaml:"heartbeat"`
	Token     string              `yaml:"token"`
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
	if cfg.Token == "" {
		return nil, fmt.Errorf("judge server token is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Heartbeat.DispatchURL == "" {
		return nil, fmt.Errorf("heartbeat dispatchURL is required")
	}
	if cfg.Heartbeat.ServiceURL == "" {
		return nil, fmt.Errorf("heartbeat serviceURL is required")
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
	if cfg.Judge.WorkspaceDir == "" {
		cfg.Judge.WorkspaceDir = defaultWorkspaceDir
	}
	if cfg.Judge.SPJSrcDir == "" {
		cfg.Judge.SPJSrcDir = defaultSPJSrcDir
	}
	if cfg.Judge.SPJExeDir == "" {
		cfg.Judge.SPJExeDir = defaultSPJExeDir
	}
	if cfg.Cache.RootDir == "" {
		cfg.Cache.RootDir = defaultCacheDir
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	if cfg.Cache.LockWait == 0 {
		cfg.Cache.LockWait = defaultLockWait
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = defaultCacheEntries
	}
	if cfg.Cache.MaxBytes <= 0 {
		cfg.Cache.MaxBytes = defaultCacheBytes
	}
	return &cfg, nil
}
