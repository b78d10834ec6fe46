package main

import (
	"context"

	"github.com/joho/godotenv"

	"atelier/internal/app"
	"atelier/pkg/config"
	"atelier/pkg/logger"
	"atelier/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	eff := config.LoadEffective(cfgPath, addrVal, dbVal, setFlags)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath)
	}
	logger.Sync()
}
