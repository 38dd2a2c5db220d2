package api

import (
	"context"
	"net/http"

	"github.com/raven-automation/ravenctl/internal/core"
)

// CapPipelineIO names the pipeline I/O capability.
const CapPipelineIO = "pipeline_io"

// PipelineIOCapability covers pipeline I/O entry point CRUD.
type PipelineIOCapability struct {
	b *Base
}

// PipelineIOMethods is the pipeline I/O capability factory.
func PipelineIOMethods() Factory {
	return Factory{Name: CapPipelineIO, New: func(b *Base) Capability {
		return &PipelineIOCapability{b: b}
	}}
}

// Name implements Capability.
func (p *PipelineIOCapability) Name() string { return CapPipelineIO }

// AllIO returns every pipeline I/O entry point. Empty on failure.
func (p *PipelineIOCapability) AllIO(ctx context.Context) []core.PipelineIO {
	return DecodeOr(p.b.Request(ctx, "/pipelines/io", nil), []core.PipelineIO{})
}

// TriggerIO returns only the trigger-type entry points. Empty on failure.
func (p *PipelineIOCapability) TriggerIO(ctx context.Context) []core.PipelineIO {
	return DecodeOr(p.b.Request(ctx, "/pipelines/io/triggers", nil), []core.PipelineIO{})
}

// DataIO returns only the data-type entry points. Empty on failure.
func (p *PipelineIOCapability) DataIO(ctx context.Context) []core.PipelineIO {
	return DecodeOr(p.b.Request(ctx, "/pipelines/io/data", nil), []core.PipelineIO{})
}

// GetIO returns a single entry point by id, or nil when unknown.
func (p *PipelineIOCapability) GetIO(ctx context.Context, id string) *core.PipelineIO {
	return DecodeOr[*core.PipelineIO](p.b.Request(ctx, "/pipelines/io/"+id, nil), nil)
}

// CreateTriggerIO creates a trigger-type entry point, or returns nil on
// failure.
func (p *PipelineIOCapability) CreateTriggerIO(ctx context.Context, model core.PipelineIOModel) *core.PipelineIO {
	model.Type = core.IOTrigger
	return DecodeOr[*core.PipelineIO](p.b.Request(ctx, "/pipelines/io/triggers", &RequestOptions{
		Method: http.MethodPost,
		Body:   model,
	}), nil)
}

// CreateDataIO creates a data-type entry point, or returns nil on failure.
func (p *PipelineIOCapability) CreateDataIO(ctx context.Context, model core.PipelineIOModel) *core.PipelineIO {
	model.Type = core.IOData
	return DecodeOr[*core.PipelineIO](p.b.Request(ctx, "/pipelines/io/data", &RequestOptions{
		Method: http.MethodPost,
		Body:   model,
	}), nil)
}

// EditIO replaces an entry point's definition, or returns nil on failure.
func (p *PipelineIOCapability) EditIO(ctx context.Context, id string, model core.PipelineIOModel) *core.PipelineIO {
	return DecodeOr[*core.PipelineIO](p.b.Request(ctx, "/pipelines/io/"+id+"/edit", &RequestOptions{
		Method: http.MethodPost,
		Body:   model,
	}), nil)
}

// DeleteIO removes an entry point. Fire-and-forget.
func (p *PipelineIOCapability) DeleteIO(ctx context.Context, id string) {
	p.b.Request(ctx, "/pipelines/io/"+id, &RequestOptions{Method: http.MethodDelete})
}

// DuplicateIO copies an entry point, returning the copy or nil on failure.
func (p *PipelineIOCapability) DuplicateIO(ctx context.Context, id string) *core.PipelineIO {
	return DecodeOr[*core.PipelineIO](p.b.Request(ctx, "/pipelines/io/"+id+"/copy", &RequestOptions{
		Method: http.MethodPost,
	}), nil)
}
