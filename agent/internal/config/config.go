package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// RelayDef names one relay the agent controls.
type RelayDef struct {
	ID   int
	Name string
}

// CameraSource maps a camera id to the local URL its snapshot comes from.
type CameraSource struct {
	ID  int
	URL string
}

type AppConfig struct {
	HubURL  string // ws://host:port/ws/agent
	AgentID string
	Secret  string
	Version string

	Relays  []RelayDef
	Cameras []CameraSource

	LogPath string
	DBPath  string

	HeartbeatInterval time.Duration

	// Third-party washer telemetry endpoint. Empty disables polling.
	MachinesURL          string
	MachinesPollInterval time.Duration
}

var cfg AppConfig

func Init(path string) AppConfig {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("agent.hub_url", "ws://127.0.0.1:9300/ws/agent")
	v.SetDefault("agent.version", "dev")
	v.SetDefault("agent.db_path", filepath.Join(os.TempDir(), "laundropi-agent", "agent.db"))
	v.SetDefault("agent.heartbeat_sec", 30)
	v.SetDefault("agent.machines.poll_sec", 60)
	_ = v.ReadInConfig()

	cfg = AppConfig{
		HubURL:               v.GetString("agent.hub_url"),
		AgentID:              v.GetString("agent.id"),
		Secret:               v.GetString("agent.secret"),
		Version:              v.GetString("agent.version"),
		LogPath:              v.GetString("agent.log_path"),
		DBPath:               v.GetString("agent.db_path"),
		HeartbeatInterval:    time.Duration(v.GetInt("agent.heartbeat_sec")) * time.Second,
		MachinesURL:          v.GetString("agent.machines.url"),
		MachinesPollInterval: time.Duration(v.GetInt("agent.machines.poll_sec")) * time.Second,
	}

	var relays []struct {
		ID   int    `mapstructure:"id"`
		Name string `mapstructure:"name"`
	}
	if err := v.UnmarshalKey("agent.relays", &relays); err == nil {
		for _, r := range relays {
			cfg.Relays = append(cfg.Relays, RelayDef{ID: r.ID, Name: r.Name})
		}
	}
	var cameras []struct {
		ID  int    `mapstructure:"id"`
		URL string `mapstructure:"url"`
	}
	if err := v.UnmarshalKey("agent.cameras", &cameras); err == nil {
		for _, c := range cameras {
			cfg.Cameras = append(cfg.Cameras, CameraSource{ID: c.ID, URL: c.URL})
		}
	}
	return cfg
}

func Get() AppConfig { return cfg }
