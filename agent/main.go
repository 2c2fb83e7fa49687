package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/camera"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/config"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/connection"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/logger"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/machines"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/relay"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/scheduler"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/store"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to agent config")
	flag.Parse()

	cfg := config.Init(*cfgPath)
	if err := logger.Init(cfg.LogPath); err != nil {
		os.Exit(1)
	}
	if cfg.AgentID == "" || cfg.Secret == "" {
		logger.Errorf("agent.id and agent.secret must be configured")
		os.Exit(1)
	}

	driver := relay.NewMemoryDriver(cfg.Relays)
	sched := scheduler.New(driver)
	cams := camera.New(cfg.Cameras)

	local, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Errorf("cannot open local store: %v", err)
		os.Exit(1)
	}

	// Resume the last pushed schedule and camera config so windows are
	// enforced even before the hub connection comes up.
	if schedules, version, err := local.LoadSchedule(); err != nil {
		logger.Warnf("stored schedule unreadable: %v", err)
	} else if version != "" {
		sched.SetSchedule(schedules, version)
	}
	if cameras, err := local.LoadCameras(); err != nil {
		logger.Warnf("stored camera config unreadable: %v", err)
	} else if len(cameras) > 0 {
		cams.Apply(cameras)
	}

	stop := make(chan struct{})
	go sched.Run(stop)

	mgr := connection.New(cfg, driver, sched, cams, local)
	go mgr.Run()

	poller := machines.NewPoller(cfg.AgentID, cfg.MachinesURL, cfg.MachinesPollInterval, mgr)
	go poller.Run(stop)

	logger.Infof("agent %s started", cfg.AgentID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("shutting down")
	close(stop)
	mgr.Stop()
}
