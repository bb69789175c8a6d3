package services

import (
	"context"
	"strings"
	"testing"

	"github.com/aihub/pdfchat/internal/chat"
	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/metrics"
	"github.com/aihub/pdfchat/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) EnsureIndexed(ctx context.Context, ownerID, documentID string) (*knowledge.IndexResult, error) {
	args := m.Called(ctx, ownerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*knowledge.IndexResult), args.Error(1)
}

func (m *MockRetriever) Search(ctx context.Context, documentID, query string, k int) ([]knowledge.SearchMatch, error) {
	args := m.Called(ctx, documentID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]knowledge.SearchMatch), args.Error(1)
}

// scriptedModel 按调用顺序返回预设回复
type scriptedModel struct {
	replies  []string
	err      error
	requests [][]chat.Message
	onCall   func()
}

func (m *scriptedModel) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	m.requests = append(m.requests, messages)
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return "", m.err
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type recordingObserver struct {
	states []PipelineState
}

func (o *recordingObserver) OnTransition(documentID string, from, to PipelineState) {
	o.states = append(o.states, to)
}

// ctxAwareHistory 上下文已取消时拒绝写入
type ctxAwareHistory struct {
	*MemoryHistoryStore
}

func (h ctxAwareHistory) AppendExchange(ctx context.Context, ownerID, documentID, question, answer string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewHistoryStoreError("append conversation exchange failed", err)
	}
	return h.MemoryHistoryStore.AppendExchange(ctx, ownerID, documentID, question, answer)
}

var refundMatches = []knowledge.SearchMatch{
	{ID: "doc-1-0", Content: "Refunds are issued within 30 days of purchase.", Score: 0.92},
	{ID: "doc-1-1", Content: "Digital goods are not refundable once downloaded.", Score: 0.81},
}

func newTestConversationService(index Retriever, history HistoryStore, model chat.ChatModel, m *metrics.Metrics) *ConversationService {
	logger := zap.NewNop()
	return NewConversationService(
		index,
		history,
		chat.NewQueryRewriter(model, logger),
		chat.NewAnswerSynthesizer(model, logger),
		2,
		m,
		logger,
	)
}

func TestConversationService_FirstQuestionIsGrounded(t *testing.T) {
	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").Return(&knowledge.IndexResult{DocumentID: "doc-1"}, nil)
	index.On("Search", mock.Anything, "doc-1", "What is the refund window?", 2).Return(refundMatches, nil)

	history := NewMemoryHistoryStore()
	model := &scriptedModel{replies: []string{"Refunds are issued within 30 days."}}
	observer := &recordingObserver{}

	svc := newTestConversationService(index, history, model, nil)
	svc.SetStageObserver(observer)

	result, err := svc.AnswerQuestion(context.Background(), "user-1", "doc-1", "What is the refund window?")
	require.NoError(t, err)
	assert.Equal(t, "Refunds are issued within 30 days.", result.Answer)
	assert.Equal(t, "What is the refund window?", result.Query)
	assert.Equal(t, StatePersisted, result.State)

	// 没有历史时不调用改写模型，只调用一次生成
	require.Len(t, model.requests, 1)
	system := model.requests[0][0]
	assert.Equal(t, chat.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Refunds are issued within 30 days of purchase.")
	assert.Contains(t, system.Content, "Digital goods are not refundable once downloaded.")

	turns, err := history.ReadAll(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleHuman, turns[0].Role)
	assert.Equal(t, "What is the refund window?", turns[0].Message)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)

	assert.Equal(t, []PipelineState{
		StateIndexEnsured,
		StateHistoryLoaded,
		StateQueryRewritten,
		StateRetrieved,
		StateSynthesized,
		StatePersisted,
	}, observer.states)
	index.AssertExpectations(t)
}

func TestConversationService_FollowUpUsesRewrittenQuery(t *testing.T) {
	history := NewMemoryHistoryStore()
	ctx := context.Background()
	require.NoError(t, history.AppendExchange(ctx, "user-1", "doc-1", "What is the refund window?", "30 days."))

	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").Return(&knowledge.IndexResult{DocumentID: "doc-1"}, nil)
	index.On("Search", mock.Anything, "doc-1", "refund policy for digital goods", 2).Return(refundMatches, nil)

	model := &scriptedModel{replies: []string{
		"refund policy for digital goods",
		"Digital goods are not refundable once downloaded.",
	}}

	svc := newTestConversationService(index, history, model, nil)
	result, err := svc.AnswerQuestion(ctx, "user-1", "doc-1", "And digital goods?")
	require.NoError(t, err)
	assert.Equal(t, "refund policy for digital goods", result.Query)

	require.Len(t, model.requests, 2)
	answerMessages := model.requests[1]
	require.Len(t, answerMessages, 4)
	assert.Equal(t, "What is the refund window?", answerMessages[1].Content)
	assert.Equal(t, "30 days.", answerMessages[2].Content)
	assert.Equal(t, "And digital goods?", answerMessages[3].Content)

	turns, err := history.ReadAll(ctx, "user-1", "doc-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "And digital goods?", turns[2].Message)
	assert.Equal(t, "Digital goods are not refundable once downloaded.", turns[3].Message)
	index.AssertExpectations(t)
}

func TestConversationService_IndexFailureAppendsNothing(t *testing.T) {
	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").
		Return(nil, apperrors.NewFetchError("download document failed", nil))

	history := NewMemoryHistoryStore()
	model := &scriptedModel{}
	observer := &recordingObserver{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	svc := newTestConversationService(index, history, model, m)
	svc.SetStageObserver(observer)

	_, err := svc.AnswerQuestion(context.Background(), "user-1", "doc-1", "What is this about?")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeFetch, apperrors.CodeOf(err))

	turns, _ := history.ReadAll(context.Background(), "user-1", "doc-1")
	assert.Empty(t, turns)
	assert.Empty(t, model.requests)
	assert.Equal(t, []PipelineState{StateFailed}, observer.states)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	count, err := testutil.GatherAndCount(reg, "pdfchat_questions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationService_SynthesisFailureAppendsNothing(t *testing.T) {
	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").Return(&knowledge.IndexResult{DocumentID: "doc-1"}, nil)
	index.On("Search", mock.Anything, "doc-1", "Summarize the document", 2).Return(refundMatches, nil)

	history := NewMemoryHistoryStore()
	model := &scriptedModel{err: apperrors.NewModelInvocationError("create chat completion failed", nil)}

	svc := newTestConversationService(index, history, model, nil)
	_, err := svc.AnswerQuestion(context.Background(), "user-1", "doc-1", "Summarize the document")
	assert.Equal(t, apperrors.ErrCodeModelInvocation, apperrors.CodeOf(err))

	turns, _ := history.ReadAll(context.Background(), "user-1", "doc-1")
	assert.Empty(t, turns)
}

func TestConversationService_RetrievalMissingNamespace(t *testing.T) {
	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").Return(&knowledge.IndexResult{DocumentID: "doc-1"}, nil)
	index.On("Search", mock.Anything, "doc-1", "Anything?", 2).Return(nil, apperrors.NewNamespaceNotFoundError("doc-1"))

	svc := newTestConversationService(index, NewMemoryHistoryStore(), &scriptedModel{}, nil)
	_, err := svc.AnswerQuestion(context.Background(), "user-1", "doc-1", "Anything?")
	assert.Equal(t, apperrors.ErrCodeNamespaceNotFound, apperrors.CodeOf(err))
}

func TestConversationService_PersistsAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	index := new(MockRetriever)
	index.On("EnsureIndexed", mock.Anything, "user-1", "doc-1").Return(&knowledge.IndexResult{DocumentID: "doc-1"}, nil)
	index.On("Search", mock.Anything, "doc-1", "What is the refund window?", 2).Return(refundMatches, nil)

	history := ctxAwareHistory{NewMemoryHistoryStore()}
	model := &scriptedModel{
		replies: []string{"Refunds are issued within 30 days."},
		onCall:  cancel,
	}

	svc := newTestConversationService(index, history, model, nil)
	result, err := svc.AnswerQuestion(ctx, "user-1", "doc-1", "What is the refund window?")
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, result.State)

	turns, err := history.ReadAll(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestConversationService_RejectsBadInput(t *testing.T) {
	index := new(MockRetriever)
	svc := newTestConversationService(index, NewMemoryHistoryStore(), &scriptedModel{}, nil)

	_, err := svc.AnswerQuestion(context.Background(), "user-1", "doc-1", strings.Repeat(" ", 3))
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	_, err = svc.EnsureIndexed(context.Background(), "", "doc-1")
	assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.CodeOf(err))

	index.AssertNotCalled(t, "EnsureIndexed", mock.Anything, mock.Anything, mock.Anything)
}
