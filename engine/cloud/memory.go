package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/provisio/provisio/pkg/logger"
)

// MemoryStore is a mutex-guarded in-memory InstanceStore and Driver. It backs
// the server's standalone mode and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	live      map[string]*LiveInstance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instances: map[string]*Instance{},
		live:      map[string]*LiveInstance{},
	}
}

// PutInstance registers a domain instance record, keyed by provider alias.
func (s *MemoryStore) PutInstance(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[inst.ProviderAlias] = inst
}

// PutLiveInstance registers the live backend view for an alias.
func (s *MemoryStore) PutLiveInstance(alias string, live *LiveInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[alias] = live
}

func (s *MemoryStore) FindByProviderAlias(_ context.Context, alias string) (*Instance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[alias]
	if !ok {
		return nil, false, nil
	}
	copied := *inst
	return &copied, true, nil
}

func (s *MemoryStore) UpdateStatus(
	_ context.Context,
	instanceID, status, faultMessage string,
	metadata map[string]string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID != instanceID {
			continue
		}
		inst.Status = status
		inst.FaultMessage = faultMessage
		if inst.Metadata == nil {
			inst.Metadata = map[string]string{}
		}
		for k, v := range metadata {
			inst.Metadata[k] = v
		}
		return nil
	}
	return fmt.Errorf("instance %s not found", instanceID)
}

func (s *MemoryStore) LiveInstance(_ context.Context, alias string) (*LiveInstance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live, ok := s.live[alias]
	if !ok {
		return nil, false, nil
	}
	copied := *live
	return &copied, true, nil
}

// LogQueue is a TaskQueue that only records enqueued tasks. Standalone mode
// uses it so callbacks remain observable without a real task runner.
type LogQueue struct {
	mu        sync.Mutex
	continued []*ContinueDeploymentTask
	updates   []*StatusUpdateTask
}

func NewLogQueue() *LogQueue {
	return &LogQueue{}
}

func (q *LogQueue) EnqueueContinueDeployment(ctx context.Context, task *ContinueDeploymentTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.continued = append(q.continued, task)
	logger.FromContext(ctx).Info("continue-deployment task enqueued",
		"instance", task.Instance.ID, "username", task.Username, "redeploy", task.Redeploy)
	return nil
}

func (q *LogQueue) EnqueueStatusUpdate(ctx context.Context, task *StatusUpdateTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updates = append(q.updates, task)
	logger.FromContext(ctx).Info("status-update task enqueued",
		"instance", task.InstanceID, "status", task.Status)
	return nil
}

// ContinuedTasks returns the continue-deployment tasks enqueued so far.
func (q *LogQueue) ContinuedTasks() []*ContinueDeploymentTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*ContinueDeploymentTask, len(q.continued))
	copy(out, q.continued)
	return out
}

// StatusUpdates returns the status-update tasks enqueued so far.
func (q *LogQueue) StatusUpdates() []*StatusUpdateTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*StatusUpdateTask, len(q.updates))
	copy(out, q.updates)
	return out
}
