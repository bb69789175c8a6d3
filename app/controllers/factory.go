package controllers

import (
	"github.com/aihub/pdfchat/internal/auth"
	"github.com/aihub/pdfchat/internal/config"
	"github.com/aihub/pdfchat/internal/database"
	"github.com/aihub/pdfchat/internal/services"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// ControllerFactory 控制器工厂
type ControllerFactory struct {
	container *dig.Container
}

// NewControllerFactory 创建控制器工厂
func NewControllerFactory(container *dig.Container) *ControllerFactory {
	return &ControllerFactory{
		container: container,
	}
}

// CreateDocumentController 创建文档控制器
func (f *ControllerFactory) CreateDocumentController() (*DocumentController, error) {
	var controller *DocumentController

	err := f.container.Invoke(func(
		cfg *config.Config,
		uploads *services.UploadService,
		conversations *services.ConversationService,
		documents *services.DocumentService,
		statuses services.StatusCache,
		jwt *auth.JWTService,
		logger *zap.Logger,
	) {
		controller = NewDocumentController(uploads, conversations, documents, statuses, jwt, logger, cfg.Server.RequestTimeout)
	})
	if err != nil {
		return nil, err
	}

	return controller, nil
}

// CreateHealthController 创建健康检查控制器
func (f *ControllerFactory) CreateHealthController() (*HealthController, error) {
	var checker *database.HealthChecker

	err := f.container.Invoke(func(hc *database.HealthChecker) {
		checker = hc
	})
	if err != nil {
		return nil, err
	}

	return NewHealthController(checker), nil
}
