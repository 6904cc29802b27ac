package argo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/provisio/provisio/pkg/logger"
)

// Workflow is a transient handle on one submitted workflow instance. The name
// is assigned by the engine at creation; a handle can also be reconstructed
// from a known name for callback-time log retrieval.
//
// Status and Watch are pure functions of (context, name) and return fresh
// Status values; the handle caches nothing but the lazily fetched definition.
type Workflow struct {
	name string
	def  map[string]any
}

// NewWorkflow reconstructs a handle from a known workflow name.
func NewWorkflow(name string) *Workflow {
	return &Workflow{name: name}
}

// Name returns the engine-assigned workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// Status queries the engine for the workflow's phase, projecting only
// status.phase. A response without a status block yields the distinguished
// no-status value. Transport and HTTP errors propagate verbatim.
func (w *Workflow) Status(ctx context.Context, ec *Context) (Status, error) {
	doc, err := ec.Client().GetWorkflow(ctx, w.name, "status.phase")
	if err != nil {
		return Status{}, err
	}
	statusBlock, ok := doc["status"].(map[string]any)
	if !ok {
		return NoStatusValue(), nil
	}
	raw, ok := statusBlock["phase"].(string)
	if !ok {
		return NoStatusValue(), nil
	}
	phase, err := ParsePhase(raw)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(phase), nil
}

// Watch polls the workflow status until it is complete, sleeping interval
// between attempts. When maxAttempts is exhausted the last observed status is
// returned rather than an error; completion is advisory, not guaranteed.
func (w *Workflow) Watch(ctx context.Context, ec *Context, interval time.Duration, maxAttempts int) (Status, error) {
	var last Status
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := w.Status(ctx, ec)
		if err != nil {
			return Status{}, err
		}
		last = status
		if status.Complete() {
			return status, nil
		}
		time.Sleep(interval)
	}
	return last, nil
}

// Node is one step/pod in a workflow's execution graph as reported by the engine.
type Node struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Phase       string `json:"phase"`
	Inputs      struct {
		Parameters []Parameter `json:"parameters"`
	} `json:"inputs"`
}

// PlaybookName returns the basename of the node's "playbook" input parameter,
// or empty when the node has none.
func (n *Node) PlaybookName() string {
	for _, param := range n.Inputs.Parameters {
		if param.Name == "playbook" {
			return filepath.Base(param.Value)
		}
	}
	return ""
}

// Nodes fetches the engine-reported execution graph, keyed by node name.
func (w *Workflow) Nodes(ctx context.Context, ec *Context) (map[string]Node, error) {
	doc, err := ec.Client().GetWorkflow(ctx, w.name, "status.nodes")
	if err != nil {
		return nil, err
	}
	statusBlock, ok := doc["status"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("workflow %s has no status block", w.name)
	}
	rawNodes, ok := statusBlock["nodes"]
	if !ok {
		return nil, fmt.Errorf("workflow %s has no nodes", w.name)
	}
	encoded, err := json.Marshal(rawNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	var nodes map[string]Node
	if err := json.Unmarshal(encoded, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}
	return nodes, nil
}

// DumpPodLog appends the log stream of one execution node's main container to
// the file at path, creating parent directories as needed. Log dumping is
// best-effort: failures are logged and swallowed so they can never fail the
// surrounding deployment flow.
func (w *Workflow) DumpPodLog(ctx context.Context, ec *Context, nodeName, path string) {
	log := logger.FromContext(ctx)
	if err := w.dumpPodLog(ctx, ec, nodeName, path); err != nil {
		log.Warn("failed to dump pod log", "workflow", w.name, "node", nodeName, "path", path, "error", err)
		return
	}
	log.Debug("pod log dumped", "workflow", w.name, "node", nodeName, "path", path)
}

func (w *Workflow) dumpPodLog(ctx context.Context, ec *Context, nodeName, path string) error {
	lines, err := ec.Client().PodLogs(ctx, w.name, nodeName, "main")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// DumpLogs dumps logs of every node in the workflow into dir, one {node}.log
// file per node. Best-effort like DumpPodLog.
func (w *Workflow) DumpLogs(ctx context.Context, ec *Context, dir string) {
	log := logger.FromContext(ctx)
	nodes, err := w.Nodes(ctx, ec)
	if err != nil {
		log.Warn("failed to list workflow nodes for log dump", "workflow", w.name, "error", err)
		return
	}
	for nodeName := range nodes {
		w.DumpPodLog(ctx, ec, nodeName, filepath.Join(dir, nodeName+".log"))
	}
}

// Definition returns the workflow definition document, fetching it from the
// engine unless a cached copy exists and refetch is false.
func (w *Workflow) Definition(ctx context.Context, ec *Context, refetch bool) (map[string]any, error) {
	if w.def != nil && !refetch {
		return w.def, nil
	}
	doc, err := ec.Client().GetWorkflow(ctx, w.name, "-status")
	if err != nil {
		return nil, err
	}
	w.def = doc
	return doc, nil
}
