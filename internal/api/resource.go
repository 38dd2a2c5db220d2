package api

import (
	"context"
	"net/http"

	"github.com/raven-automation/ravenctl/internal/core"
)

// CapResource names the resource capability.
const CapResource = "resource"

// ResourceCapability covers resource listing, executor discovery and
// execution.
type ResourceCapability struct {
	b *Base
}

// ResourceMethods is the resource capability factory.
func ResourceMethods() Factory {
	return Factory{Name: CapResource, New: func(b *Base) Capability {
		return &ResourceCapability{b: b}
	}}
}

// Name implements Capability.
func (r *ResourceCapability) Name() string { return CapResource }

// ListResources returns every resource visible to the current user. Empty
// on failure.
func (r *ResourceCapability) ListResources(ctx context.Context) []core.Resource {
	return DecodeOr(r.b.Request(ctx, "/resources", nil), []core.Resource{})
}

// GetResource fetches a single resource by plugin and id, or nil when it is
// unknown. The snapshot cache uses this for patch-on-event updates.
func (r *ResourceCapability) GetResource(ctx context.Context, plugin, id string) *core.Resource {
	return DecodeOr[*core.Resource](r.b.Request(ctx, "/resources/"+plugin+"/"+id, nil), nil)
}

// GetExecutorsForResource returns the executors applicable to the given
// resources. Empty on failure.
func (r *ResourceCapability) GetExecutorsForResource(ctx context.Context, resources ...core.Resource) []core.Executor {
	return DecodeOr(r.b.Request(ctx, "/resources/executors", &RequestOptions{
		Method: http.MethodPost,
		Body:   resources,
	}), []core.Executor{})
}

// GetResourcesByTarget returns the resources matched by the given execution
// target selectors. Empty on failure.
func (r *ResourceCapability) GetResourcesByTarget(ctx context.Context, targets []core.ExecutionTarget) []core.Resource {
	return DecodeOr(r.b.Request(ctx, "/resources/filtered", &RequestOptions{
		Method: http.MethodPost,
		Body:   targets,
	}), []core.Resource{})
}

type executeRequest struct {
	Target   core.Resource  `json:"target"`
	Executor core.Executor  `json:"executor"`
	Args     map[string]any `json:"args"`
}

// ExecuteOnResource invokes an executor against a target resource.
// Fire-and-forget: results arrive as events, not in the response.
func (r *ResourceCapability) ExecuteOnResource(ctx context.Context, executor core.Executor, args map[string]any, target core.Resource) {
	r.b.Request(ctx, "/resources/execute", &RequestOptions{
		Method: http.MethodPost,
		Body:   executeRequest{Target: target, Executor: executor, Args: args},
	})
}
