package main

import (
	"log"
	"strconv"

	"github.com/aihub/pdfchat/app/bootstrap"
	"github.com/aihub/pdfchat/app/router"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	if err := router.Init(app.Factory, app.Config.Server.AllowedOrigins, app.Logger); err != nil {
		app.Logger.Fatal("failed to register routes", zap.Error(err))
	}

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		app.Logger.Fatal("invalid server port", zap.String("port", app.Config.Server.Port))
	}

	web.BConfig.AppName = app.Config.App.Name
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = 64 << 20
	web.BConfig.Listen.HTTPPort = port

	app.Logger.Info("Starting PDF chat service", zap.Int("port", port))
	web.Run()
}
