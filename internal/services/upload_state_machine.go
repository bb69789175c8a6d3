package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/metrics"
	"go.uber.org/zap"
)

// 上传状态
const (
	UploadStatusUploading  = "uploading"
	UploadStatusUploaded   = "uploaded"
	UploadStatusSaving     = "saving"
	UploadStatusGenerating = "generating"
	UploadStatusDone       = "done"
	UploadStatusFailed     = "failed"
)

// 状态转换规则，progress更新只在uploading内发生
var uploadTransitions = map[string][]string{
	"":                     {UploadStatusUploading},
	UploadStatusUploading:  {UploadStatusUploaded, UploadStatusFailed},
	UploadStatusUploaded:   {UploadStatusSaving, UploadStatusFailed},
	UploadStatusSaving:     {UploadStatusGenerating, UploadStatusFailed},
	UploadStatusGenerating: {UploadStatusDone, UploadStatusFailed},
}

// CanUploadTransition 检查是否可以进行状态转换
func CanUploadTransition(from, to string) bool {
	for _, next := range uploadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalUploadStatus done和failed之后不再有事件
func IsTerminalUploadStatus(status string) bool {
	return status == UploadStatusDone || status == UploadStatusFailed
}

// UploadEvent 状态通知
type UploadEvent struct {
	DocumentID string    `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// StatusListener 上传状态的唯一通知通道
type StatusListener interface {
	OnStatus(ctx context.Context, event UploadEvent)
}

// StatusListenerFunc 函数适配器
type StatusListenerFunc func(ctx context.Context, event UploadEvent)

func (f StatusListenerFunc) OnStatus(ctx context.Context, event UploadEvent) {
	f(ctx, event)
}

// UploadTracker 单个文档的上传状态机
type UploadTracker struct {
	mu         sync.Mutex
	documentID string
	ownerID    string
	status     string
	progress   int
	listeners  []StatusListener
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewUploadTracker 创建状态机，初始状态为空，第一次转换必须是uploading
func NewUploadTracker(documentID, ownerID string, listeners []StatusListener, m *metrics.Metrics, logger *zap.Logger) *UploadTracker {
	return &UploadTracker{
		documentID: documentID,
		ownerID:    ownerID,
		listeners:  listeners,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Status 当前状态
func (t *UploadTracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Transition 执行状态转换并通知监听者
func (t *UploadTracker) Transition(ctx context.Context, to string) error {
	if to == UploadStatusFailed {
		return t.Fail(ctx, nil)
	}

	t.mu.Lock()
	if !CanUploadTransition(t.status, to) {
		from := t.status
		t.mu.Unlock()
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer,
			fmt.Sprintf("invalid upload transition from %q to %q", from, to))
	}
	from := t.status
	t.status = to
	if to != UploadStatusUploading {
		t.progress = 100
	}
	event := t.eventLocked("", "")
	t.mu.Unlock()

	t.logger.Info("upload status transitioned",
		zap.String("documentID", t.documentID),
		zap.String("from", from),
		zap.String("to", to))
	t.metrics.ObserveUploadStatus(to)
	t.emit(ctx, event)
	return nil
}

// Progress 上传进度，只在uploading状态内且百分比增加时通知
func (t *UploadTracker) Progress(ctx context.Context, percent int) {
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	if t.status != UploadStatusUploading || percent <= t.progress {
		t.mu.Unlock()
		return
	}
	t.progress = percent
	event := t.eventLocked("", "")
	t.mu.Unlock()

	t.emit(ctx, event)
}

// Fail 从任意非终止状态进入failed，重复调用无效
func (t *UploadTracker) Fail(ctx context.Context, cause error) error {
	t.mu.Lock()
	if IsTerminalUploadStatus(t.status) {
		from := t.status
		t.mu.Unlock()
		return apperrors.NewSystemError(apperrors.ErrCodeInternalServer,
			fmt.Sprintf("invalid upload transition from %q to %q", from, UploadStatusFailed))
	}
	from := t.status
	t.status = UploadStatusFailed

	code := ""
	message := ""
	if cause != nil {
		code = string(apperrors.CodeOf(cause))
		message = apperrors.UserMessage(cause)
	}
	event := t.eventLocked(code, message)
	t.mu.Unlock()

	t.logger.Warn("upload failed",
		zap.String("documentID", t.documentID),
		zap.String("from", from),
		zap.String("errorCode", code),
		zap.Error(cause))
	t.metrics.ObserveUploadStatus(UploadStatusFailed)
	t.emit(ctx, event)
	return nil
}

func (t *UploadTracker) eventLocked(code, message string) UploadEvent {
	return UploadEvent{
		DocumentID: t.documentID,
		OwnerID:    t.ownerID,
		Status:     t.status,
		Progress:   t.progress,
		ErrorCode:  code,
		Message:    message,
		At:         t.now(),
	}
}

func (t *UploadTracker) emit(ctx context.Context, event UploadEvent) {
	for _, listener := range t.listeners {
		listener.OnStatus(ctx, event)
	}
}
