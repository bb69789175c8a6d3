package services

import "fmt"

// PipelineState 问答管线状态
type PipelineState string

const (
	StateInit           PipelineState = "INIT"
	StateIndexEnsured   PipelineState = "INDEX_ENSURED"
	StateHistoryLoaded  PipelineState = "HISTORY_LOADED"
	StateQueryRewritten PipelineState = "QUERY_REWRITTEN"
	StateRetrieved      PipelineState = "RETRIEVED"
	StateSynthesized    PipelineState = "SYNTHESIZED"
	StatePersisted      PipelineState = "PERSISTED"
	StateFailed         PipelineState = "FAILED"
)

// 阶段严格顺序执行，任何非终止状态都可以进入FAILED
var pipelineTransitions = map[PipelineState]PipelineState{
	StateInit:           StateIndexEnsured,
	StateIndexEnsured:   StateHistoryLoaded,
	StateHistoryLoaded:  StateQueryRewritten,
	StateQueryRewritten: StateRetrieved,
	StateRetrieved:      StateSynthesized,
	StateSynthesized:    StatePersisted,
}

// IsTerminal PERSISTED和FAILED为终止状态
func (s PipelineState) IsTerminal() bool {
	return s == StatePersisted || s == StateFailed
}

// CanTransition 检查是否可以进行状态转换
func (s PipelineState) CanTransition(to PipelineState) bool {
	if to == StateFailed {
		return !s.IsTerminal()
	}
	next, ok := pipelineTransitions[s]
	return ok && next == to
}

// StageObserver 接收每次状态转换
type StageObserver interface {
	OnTransition(documentID string, from, to PipelineState)
}

// pipelineRun 单次问答的状态记录
type pipelineRun struct {
	documentID string
	state      PipelineState
	observer   StageObserver
}

func newPipelineRun(documentID string, observer StageObserver) *pipelineRun {
	return &pipelineRun{documentID: documentID, state: StateInit, observer: observer}
}

func (r *pipelineRun) advance(to PipelineState) error {
	if !r.state.CanTransition(to) {
		return fmt.Errorf("invalid pipeline transition from %s to %s", r.state, to)
	}
	from := r.state
	r.state = to
	if r.observer != nil {
		r.observer.OnTransition(r.documentID, from, to)
	}
	return nil
}
