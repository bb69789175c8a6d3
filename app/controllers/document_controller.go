package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aihub/pdfchat/internal/auth"
	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/services"
	"go.uber.org/zap"
)

// DocumentController 文档上传与问答
type DocumentController struct {
	BaseController
	// beego按注册实例为每个请求复制导出字段
	Uploads       *services.UploadService
	Conversations *services.ConversationService
	Documents     *services.DocumentService
	Statuses      services.StatusCache
}

// ChatRequest 提问请求
type ChatRequest struct {
	Question string `json:"question"`
}

// NewDocumentController 创建文档控制器
func NewDocumentController(
	uploads *services.UploadService,
	conversations *services.ConversationService,
	documents *services.DocumentService,
	statuses services.StatusCache,
	jwt *auth.JWTService,
	logger *zap.Logger,
	requestTimeout time.Duration,
) *DocumentController {
	return &DocumentController{
		BaseController: BaseController{
			jwt:            jwt,
			logger:         logger,
			requestTimeout: requestTimeout,
		},
		Uploads:       uploads,
		Conversations: conversations,
		Documents:     documents,
		Statuses:      statuses,
	}
}

// Upload 上传PDF并生成向量
func (c *DocumentController) Upload() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ctx, cancel := c.requestContext()
	defer cancel()

	doc, err := c.Uploads.Upload(ctx, services.UploadRequest{
		OwnerID:     ownerID,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, file)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    doc,
	})
}

// List 分页列出当前用户的文档
func (c *DocumentController) List() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}

	page, _ := c.GetInt("page", 1)
	limit, _ := c.GetInt("limit", 20)

	ctx, cancel := c.requestContext()
	defer cancel()

	list, err := c.Documents.ListDocuments(ctx, ownerID, page, limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(list)
}

// Get 文档详情
func (c *DocumentController) Get() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	doc, err := c.Documents.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(doc)
}

// Delete 删除文档及其向量
func (c *DocumentController) Delete() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	if err := c.Documents.DeleteDocument(ctx, ownerID, documentID); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": documentID})
}

// Index 确保文档已建立向量命名空间
func (c *DocumentController) Index() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	result, err := c.Conversations.EnsureIndexed(ctx, ownerID, documentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// Chat 针对文档提问
func (c *DocumentController) Chat() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	// 命名空间可能已存在，先确认文档归属
	if _, err := c.Documents.GetDocument(ctx, ownerID, documentID); err != nil {
		c.JSONAppError(err)
		return
	}

	result, err := c.Conversations.AnswerQuestion(ctx, ownerID, documentID, req.Question)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// Messages 按时间正序返回对话历史
func (c *DocumentController) Messages() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	turns, err := c.Conversations.History(ctx, ownerID, documentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"messages": turns})
}

// Status 最近一次上传状态
func (c *DocumentController) Status() {
	ownerID, ok := c.authenticatedOwner()
	if !ok {
		return
	}
	documentID, ok := c.pathParam(":id")
	if !ok {
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()

	event, err := c.Statuses.Latest(ctx, documentID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	if event.OwnerID != ownerID {
		c.JSONAppError(apperrors.NewNotFoundError("Upload status"))
		return
	}
	c.JSONSuccess(event)
}
