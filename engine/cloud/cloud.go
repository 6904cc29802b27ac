// Package cloud defines the seam to the domain resource store that owns
// instances, identities and asynchronous deployment tasks. The real resource
// catalog lives in another system; this package only fixes the interfaces the
// callback handlers depend on, plus in-memory implementations used by the
// server's standalone mode and by tests.
package cloud

import "context"

// Instance is the domain record of a deployable compute instance.
type Instance struct {
	ID            string
	ProviderAlias string
	ProviderID    string
	Owner         Identity
	Status        string
	FaultMessage  string
	Metadata      map[string]string
}

// Identity is the credential/owner record an instance was created under.
type Identity struct {
	ID         string
	Username   string
	ProviderID string
}

// LiveInstance is the cloud backend's live view of a deployed instance.
type LiveInstance struct {
	ID   string
	IP   string
	Name string
}

// Transient instance statuses written by the callback failure path.
const (
	StatusDeployError = "deploy_error"
)

// InstanceStore looks up and updates domain instance records. Lookups return a
// found flag instead of a not-found error so callers propagate absence
// explicitly.
type InstanceStore interface {
	FindByProviderAlias(ctx context.Context, alias string) (*Instance, bool, error)
	// UpdateStatus sets the transient status and fault message of an instance
	// and merges extra metadata keys without replacing unrelated ones.
	UpdateStatus(ctx context.Context, instanceID, status, faultMessage string, metadata map[string]string) error
}

// Driver resolves live backend objects for a provider.
type Driver interface {
	LiveInstance(ctx context.Context, alias string) (*LiveInstance, bool, error)
}

// ContinueDeploymentTask asks the task runner to resume the second half of a
// multi-stage deployment after its prerequisite workflow succeeded.
type ContinueDeploymentTask struct {
	Instance *LiveInstance
	Identity Identity
	Username string
	Redeploy bool
}

// StatusUpdateTask asks the task runner to persist instance status metadata.
type StatusUpdateTask struct {
	InstanceID string
	Status     string
	Fault      string
	Metadata   map[string]string
}

// TaskQueue enqueues asynchronous deployment tasks. Both operations are
// fire-and-forget from the caller's perspective; the queue owns its own retry
// semantics.
type TaskQueue interface {
	EnqueueContinueDeployment(ctx context.Context, task *ContinueDeploymentTask) error
	EnqueueStatusUpdate(ctx context.Context, task *StatusUpdateTask) error
}
