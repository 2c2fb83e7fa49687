package initialize

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/controllers"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/db"
	jwtutil "github.com/AndrewArto/laundropi-control-sub000/backend/app/jwt"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/middleware"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/models"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/repo"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/services"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/socket"
	"github.com/AndrewArto/laundropi-control-sub000/backend/config"
	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/backend/router"

	"github.com/redis/go-redis/v9"
)

type App struct {
	Addr    string
	Handler http.Handler
}

// Build wires the whole hub: config, storage, socket hub, services,
// controllers and the router.
func Build(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	global.Config = cfg

	gdb, err := db.Connect(db.Config{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Pass,
		DBName:   cfg.DB.Name,
		Path:     cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := gdb.AutoMigrate(
		&models.Agent{},
		&models.ScheduleRule{},
		&models.GroupRule{},
		&models.Command{},
		&models.Camera{},
		&models.Machine{},
		&models.User{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	global.Mdb = gdb

	if cfg.Redis.Enabled {
		global.Rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	}

	agentRepo := repo.NewAgentRepository(gdb)
	commandRepo := repo.NewCommandRepository(gdb)
	scheduleRepo := repo.NewScheduleRepository(gdb)
	groupRepo := repo.NewGroupRepository(gdb)
	cameraRepo := repo.NewCameraRepository(gdb)
	machineRepo := repo.NewMachineRepository(gdb)
	userRepo := repo.NewUserRepository(gdb)

	if err := commandRepo.Prune(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
		global.Logger.Warn().Err(err).Msg("prune command journal")
	}

	hub := socket.NewHub(cfg.Fleet.StaleAfter)

	agentSvc := services.NewAgentService(agentRepo, cfg.Fleet)
	reconcileSvc := services.NewReconcileService(agentRepo, commandRepo, hub)
	scheduleSvc := services.NewScheduleService(scheduleRepo, groupRepo, agentRepo, hub)
	frameProxy := services.NewFrameProxy(hub, agentRepo, cameraRepo, cfg.Camera.CacheTTL, cfg.Camera.MinRefetch, cfg.Camera.FrameTimeout)
	machineSvc := services.NewMachineService(machineRepo)
	userSvc := services.NewUserService(userRepo)
	statusCache := services.NewStatusCache(global.Rdb, cfg.Fleet.StaleAfter)

	if err := userSvc.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	auth := &middleware.Auth{Signer: signer}

	handler := router.New(router.Controllers{
		Auth:      controllers.NewAuthController(userSvc, signer),
		Agents:    controllers.NewAgentController(agentSvc, reconcileSvc, machineSvc, statusCache, commandRepo, hub),
		Relays:    controllers.NewRelayController(reconcileSvc),
		Cameras:   controllers.NewCameraController(frameProxy, cameraRepo),
		Schedules: controllers.NewScheduleController(scheduleRepo, groupRepo, scheduleSvc, hub),
		Socket:    controllers.NewSocketController(hub, agentSvc, reconcileSvc, scheduleSvc, frameProxy, machineSvc, statusCache),
	}, auth)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	return &App{Addr: addr, Handler: handler}, nil
}
