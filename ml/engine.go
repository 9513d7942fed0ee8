package ml

import (
	"sync"
	"sync/atomic"
)

type snapshot struct {
	predictor  *Predictor
	generation uint64
}

// Engine 发布当前的 Predictor，读取无锁，重载时整体替换快照
type Engine struct {
	current atomic.Pointer[snapshot]
	mu      sync.Mutex
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Publish(p *Predictor) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var generation uint64 = 1
	if prev := e.current.Load(); prev != nil {
		generation = prev.generation + 1
	}
	e.current.Store(&snapshot{predictor: p, generation: generation})
	return generation
}

func (e *Engine) Predictor() (*Predictor, bool) {
	snap := e.current.Load()
	if snap == nil || snap.predictor == nil {
		return nil, false
	}
	return snap.predictor, true
}

func (e *Engine) Generation() uint64 {
	snap := e.current.Load()
	if snap == nil {
		return 0
	}
	return snap.generation
}
