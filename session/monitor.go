package session

import "github.com/poiesic/chatsession/core"

// Monitor provides hooks to observe a turn.
// Implement this interface to trace intermediate steps of Ask.
type Monitor interface {
	Start(q Question)
	AfterEmbedding(dimension int)
	AfterRetrieval(history *core.HistoryContext, fromTranscript bool)
	AfterCompletion(answer string)
	Finish(answer *Answer)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Question)                              {}
func (n *noopMonitor) AfterEmbedding(_ int)                          {}
func (n *noopMonitor) AfterRetrieval(_ *core.HistoryContext, _ bool) {}
func (n *noopMonitor) AfterCompletion(_ string)                      {}
func (n *noopMonitor) Finish(_ *Answer)                              {}
