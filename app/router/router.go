package router

import (
	"fmt"

	"github.com/aihub/pdfchat/app/controllers"
	"github.com/aihub/pdfchat/app/middleware"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// Init registers all routes. Must be called after the container is built.
func Init(factory *controllers.ControllerFactory, allowedOrigins []string, logger *zap.Logger) error {
	web.InsertFilter("/*", web.BeforeRouter, middleware.MarkRequestStart)
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORS(allowedOrigins))
	web.InsertFilter("/*", web.FinishRouter, middleware.AccessLog(logger), web.WithReturnOnOutput(false))

	healthController, err := factory.CreateHealthController()
	if err != nil {
		return fmt.Errorf("create health controller: %w", err)
	}
	web.Router("/health", healthController, "get:Health")
	web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")

	documentController, err := factory.CreateDocumentController()
	if err != nil {
		return fmt.Errorf("create document controller: %w", err)
	}
	web.Router("/api/documents", documentController, "get:List;post:Upload")
	web.Router("/api/documents/:id", documentController, "get:Get;delete:Delete")
	web.Router("/api/documents/:id/index", documentController, "post:Index")
	web.Router("/api/documents/:id/chat", documentController, "post:Chat")
	web.Router("/api/documents/:id/messages", documentController, "get:Messages")
	web.Router("/api/documents/:id/status", documentController, "get:Status")

	return nil
}
