package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cryptoj/internal/common/cache"
	"cryptoj/internal/common/db"
	"cryptoj/internal/common/storage"
	"cryptoj/internal/judge/sandbox"
	"cryptoj/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultCheckInterval      = 10 * time.Second
	defaultSandboxTimeout     = 5 * time.Minute
	defaultCompileOutputLimit = 64 << 10
	defaultRunOutputLimit     = 16 << 20

	defaultArchiveRoot       = "var/checkpoints"
	defaultArchiveTTL        = time.Hour
	defaultArchiveMaxEntries = 64
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// SizeLimitConfig caps collected sandbox output.
type SizeLimitConfig struct {
	CompileOutput int64 `yaml:"compileOutput"`
	RunOutput     int64 `yaml:"runOutput"`
}

// ArchiveConfig holds local checkpoint archive settings. When MinIO is
// configured, RootDir is the download cache; otherwise archives are read
// from RootDir directly.
type ArchiveConfig struct {
	RootDir    string        `yaml:"rootDir"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Database  db.MySQLConfig      `yaml:"database"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Sandbox   sandbox.Config      `yaml:"sandbox"`
	SizeLimit SizeLimitConfig     `yaml:"sizeLimit"`
	Archive   ArchiveConfig       `yaml:"archive"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Sandbox.Endpoint == "" {
		return nil, fmt.Errorf("sandbox endpoint is required")
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
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = defaultSandboxTimeout
	}
	if cfg.Sandbox.CheckInterval == 0 {
		cfg.Sandbox.CheckInterval = defaultCheckInterval
	}
	if cfg.SizeLimit.CompileOutput <= 0 {
		cfg.SizeLimit.CompileOutput = defaultCompileOutputLimit
	}
	if cfg.SizeLimit.RunOutput <= 0 {
		cfg.SizeLimit.RunOutput = defaultRunOutputLimit
	}
	if cfg.Archive.RootDir == "" {
		cfg.Archive.RootDir = defaultArchiveRoot
	}
	if cfg.Archive.TTL == 0 {
		cfg.Archive.TTL = defaultArchiveTTL
	}
	if cfg.Archive.MaxEntries <= 0 {
		cfg.Archive.MaxEntries = defaultArchiveMaxEntries
	}
	return &cfg, nil
}
