package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DB struct {
	Driver string // "mysql" or "sqlite"
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
	Path   string // sqlite file path
}

type HTTP struct {
	Host string
	Port int
}

type Fleet struct {
	// AllowedAgents is the known-fleet allow-list. Empty means allow any.
	AllowedAgents []string
	// StaticSecrets maps agentId to a provisioned secret for agents that
	// have no secret on record yet.
	StaticSecrets map[string]string
	// DynamicRegistration lets an unknown agent register with whatever
	// secret it presents on first hello.
	DynamicRegistration bool
	// LegacySecret, if non-empty, is accepted for agents with no secret on
	// record when no static secret matches.
	LegacySecret string
	// StaleAfter marks an agent offline for reporting when no heartbeat
	// arrived within this window.
	StaleAfter time.Duration
}

type Camera struct {
	CacheTTL     time.Duration
	MinRefetch   time.Duration
	FrameTimeout time.Duration
}

type Redis struct {
	Enabled bool
	Addr    string
	DB      int
}

type Config struct {
	HTTP   HTTP
	DB     DB
	Fleet  Fleet
	Camera Camera
	Redis  Redis
	JWT    struct {
		Secret string
		Issuer string
		ExpMin int
	}
	Admin struct {
		Username string
		Password string
	}
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("hub.host", "127.0.0.1")
	v.SetDefault("hub.port", 9300)
	v.SetDefault("hub.db.driver", "mysql")
	v.SetDefault("hub.db.host", "127.0.0.1")
	v.SetDefault("hub.db.port", 3306)
	v.SetDefault("hub.db.user", "root")
	v.SetDefault("hub.db.pass", "")
	v.SetDefault("hub.db.name", "laundropi")
	v.SetDefault("hub.db.path", "laundropi.db")
	v.SetDefault("hub.fleet.allowed_agents", []string{})
	v.SetDefault("hub.fleet.dynamic_registration", false)
	v.SetDefault("hub.fleet.legacy_secret", "")
	v.SetDefault("hub.fleet.stale_after_sec", 90)
	v.SetDefault("hub.camera.cache_ttl_sec", 10)
	v.SetDefault("hub.camera.min_refetch_sec", 30)
	v.SetDefault("hub.camera.frame_timeout_sec", 4)
	v.SetDefault("hub.redis.enabled", false)
	v.SetDefault("hub.redis.addr", "127.0.0.1:6379")
	v.SetDefault("hub.redis.db", 0)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		HTTP: HTTP{Host: v.GetString("hub.host"), Port: v.GetInt("hub.port")},
		DB: DB{
			Driver: v.GetString("hub.db.driver"),
			Host:   v.GetString("hub.db.host"),
			Port:   v.GetInt("hub.db.port"),
			User:   v.GetString("hub.db.user"),
			Pass:   v.GetString("hub.db.pass"),
			Name:   v.GetString("hub.db.name"),
			Path:   v.GetString("hub.db.path"),
		},
		Fleet: Fleet{
			AllowedAgents:       v.GetStringSlice("hub.fleet.allowed_agents"),
			StaticSecrets:       v.GetStringMapString("hub.fleet.static_secrets"),
			DynamicRegistration: v.GetBool("hub.fleet.dynamic_registration"),
			LegacySecret:        v.GetString("hub.fleet.legacy_secret"),
			StaleAfter:          time.Duration(v.GetInt("hub.fleet.stale_after_sec")) * time.Second,
		},
		Camera: Camera{
			CacheTTL:     time.Duration(v.GetInt("hub.camera.cache_ttl_sec")) * time.Second,
			MinRefetch:   time.Duration(v.GetInt("hub.camera.min_refetch_sec")) * time.Second,
			FrameTimeout: time.Duration(v.GetInt("hub.camera.frame_timeout_sec")) * time.Second,
		},
		Redis: Redis{
			Enabled: v.GetBool("hub.redis.enabled"),
			Addr:    v.GetString("hub.redis.addr"),
			DB:      v.GetInt("hub.redis.db"),
		},
	}
	cfg.JWT.Secret = v.GetString("hub.jwt.secret")
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	cfg.JWT.Issuer = v.GetString("hub.jwt.issuer")
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "laundropi-hub"
	}
	cfg.JWT.ExpMin = v.GetInt("hub.jwt.exp_min")
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	cfg.Admin.Username = v.GetString("hub.admin.username")
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	cfg.Admin.Password = v.GetString("hub.admin.password")
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = "admin"
	}
	return cfg, nil
}
