package services

import (
	"context"
	"strings"
	"time"

	"github.com/aihub/pdfchat/internal/chat"
	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/metrics"
	"github.com/aihub/pdfchat/internal/models"
	"go.uber.org/zap"
)

// Retriever 文档命名空间检索
type Retriever interface {
	DocumentIndexer
	Search(ctx context.Context, documentID, query string, k int) ([]knowledge.SearchMatch, error)
}

// AnswerResult 一次问答的结果
type AnswerResult struct {
	Answer  string                  `json:"answer"`
	Query   string                  `json:"query"`
	Sources []knowledge.SearchMatch `json:"sources"`
	State   PipelineState           `json:"state"`
}

// ConversationService 基于文档的多轮问答
type ConversationService struct {
	index       Retriever
	history     HistoryStore
	rewriter    *chat.QueryRewriter
	synthesizer *chat.AnswerSynthesizer
	topK        int
	observer    StageObserver
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewConversationService 创建对话服务
func NewConversationService(
	index Retriever,
	history HistoryStore,
	rewriter *chat.QueryRewriter,
	synthesizer *chat.AnswerSynthesizer,
	topK int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ConversationService {
	if topK <= 0 {
		topK = 4
	}
	return &ConversationService{
		index:       index,
		history:     history,
		rewriter:    rewriter,
		synthesizer: synthesizer,
		topK:        topK,
		metrics:     m,
		logger:      logger,
	}
}

// SetStageObserver 设置状态转换观察者
func (s *ConversationService) SetStageObserver(observer StageObserver) {
	s.observer = observer
}

// EnsureIndexed 保证文档已建立向量命名空间
func (s *ConversationService) EnsureIndexed(ctx context.Context, ownerID, documentID string) (*knowledge.IndexResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.NewAuthorizationError("missing owner", nil)
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, apperrors.NewInvalidInputError("documentID", "is required")
	}
	return s.index.EnsureIndexed(ctx, ownerID, documentID)
}

// AnswerQuestion 问答主流程，失败时不写入任何对话轮次
func (s *ConversationService) AnswerQuestion(ctx context.Context, ownerID, documentID, question string) (*AnswerResult, error) {
	run := newPipelineRun(documentID, s.observer)
	result, err := s.answer(ctx, run, ownerID, documentID, question)
	if err != nil {
		if run.state.CanTransition(StateFailed) {
			run.advance(StateFailed)
		}
		s.metrics.ObservePipelineResult(string(StateFailed), string(apperrors.CodeOf(err)))
		s.logger.Warn("answer question failed",
			zap.String("ownerID", ownerID),
			zap.String("documentID", documentID),
			zap.String("errorCode", string(apperrors.CodeOf(err))),
			zap.Error(err))
		return nil, err
	}

	s.metrics.ObservePipelineResult(string(run.state), "")
	return result, nil
}

func (s *ConversationService) answer(ctx context.Context, run *pipelineRun, ownerID, documentID, question string) (*AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewInvalidInputError("question", "is required")
	}

	if _, err := s.EnsureIndexed(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	if err := run.advance(StateIndexEnsured); err != nil {
		return nil, err
	}

	started := time.Now()
	history, err := s.history.ReadAll(ctx, ownerID, documentID)
	s.metrics.ObserveStage("history", started)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewHistoryStoreError("read conversation history failed", err)
	}
	if err := run.advance(StateHistoryLoaded); err != nil {
		return nil, err
	}

	started = time.Now()
	query, err := s.rewriter.Rewrite(ctx, history, question)
	s.metrics.ObserveStage("rewrite", started)
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateQueryRewritten); err != nil {
		return nil, err
	}

	started = time.Now()
	matches, err := s.index.Search(ctx, documentID, query, s.topK)
	s.metrics.ObserveStage("retrieve", started)
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateRetrieved); err != nil {
		return nil, err
	}

	started = time.Now()
	answer, err := s.synthesizer.Synthesize(ctx, matches, history, question)
	s.metrics.ObserveStage("synthesize", started)
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateSynthesized); err != nil {
		return nil, err
	}

	// 回答已生成，调用方取消不再影响落库
	if err := s.history.AppendExchange(context.WithoutCancel(ctx), ownerID, documentID, question, answer); err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewHistoryStoreError("append conversation exchange failed", err)
	}
	if err := run.advance(StatePersisted); err != nil {
		return nil, err
	}

	s.logger.Info("question answered",
		zap.String("ownerID", ownerID),
		zap.String("documentID", documentID),
		zap.Int("historyTurns", len(history)),
		zap.Int("sources", len(matches)))

	return &AnswerResult{
		Answer:  answer,
		Query:   query,
		Sources: matches,
		State:   run.state,
	}, nil
}

// History 按时间正序返回对话历史
func (s *ConversationService) History(ctx context.Context, ownerID, documentID string) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.NewAuthorizationError("missing owner", nil)
	}
	return s.history.ReadAll(ctx, ownerID, documentID)
}
