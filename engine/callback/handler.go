package callback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler processes "workflow finished" callbacks for one workflow type.
//
// Verify checks the type-specific payload fields and must not cause side
// effects; Handle runs the continuation or failure logic. The gateway calls
// them sequentially and a Verify failure prevents Handle from running.
type Handler interface {
	Verify(ctx context.Context, workflowName string, payload map[string]any) error
	Handle(ctx context.Context, workflowName string, payload map[string]any) error
}

var ErrDuplicateType = errors.New("duplicate workflow type")

// Registry is the static workflow type to handler mapping, built at process
// start.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Handler{}}
}

func normalizeType(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r *Registry) Add(workflowType string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeType(workflowType)
	if key == "" {
		return fmt.Errorf("workflow type must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %s must not be nil", key)
	}
	if _, ok := r.byType[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, key)
	}
	r.byType[key] = h
	return nil
}

func (r *Registry) Get(workflowType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byType[normalizeType(workflowType)]
	return h, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
