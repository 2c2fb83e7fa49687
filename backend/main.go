package main

import (
	"flag"
	"net/http"

	"github.com/AndrewArto/laundropi-control-sub000/backend/global"
	"github.com/AndrewArto/laundropi-control-sub000/backend/initialize"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to hub config")
	flag.Parse()

	app, err := initialize.Build(*configPath)
	if err != nil {
		global.Logger.Fatal().Err(err).Msg("hub startup failed")
	}

	global.Logger.Info().Str("addr", app.Addr).Msg("hub listening")
	if err := http.ListenAndServe(app.Addr, app.Handler); err != nil {
		global.Logger.Fatal().Err(err).Msg("hub stopped")
	}
}
