package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/raven-automation/ravenctl/internal/core"
)

// recordingRequest captures each request and replays canned responses by
// endpoint.
type recordingRequest struct {
	endpoints []string
	bodies    []any
	responses map[string]Response
}

func (r *recordingRequest) request(ctx context.Context, endpoint string, opts *RequestOptions) Response {
	r.endpoints = append(r.endpoints, endpoint)
	if opts != nil {
		r.bodies = append(r.bodies, opts.Body)
	} else {
		r.bodies = append(r.bodies, nil)
	}
	if resp, ok := r.responses[endpoint]; ok {
		return resp
	}
	return Response{Success: false, StatusCode: 404, StatusText: "Not Found"}
}

func okJSON(v any) Response {
	data, _ := json.Marshal(v)
	return Response{Success: true, Data: data}
}

func TestScopeValidateBodies(t *testing.T) {
	rec := &recordingRequest{responses: map[string]Response{
		"/auth/scopes/validate": okJSON(true),
	}}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, ScopeMethods())
	sc, _ := Find[*ScopeCapability](client)

	sc.HasAnyScopes(context.Background(), "a", "b")
	sc.HasAllScopes(context.Background(), "a", "b")

	if len(rec.bodies) != 2 {
		t.Fatalf("got %d requests, want 2", len(rec.bodies))
	}

	anyBody := rec.bodies[0].(validateScopes)
	if anyBody.All {
		t.Error("HasAnyScopes must not set all")
	}
	allBody := rec.bodies[1].(validateScopes)
	if !allBody.All {
		t.Error("HasAllScopes must set all")
	}
	if len(allBody.Scopes) != 2 || allBody.Scopes[0] != "a" {
		t.Errorf("validate scopes = %v, want [a b]", allBody.Scopes)
	}
}

func TestScopeListingDegradesToEmpty(t *testing.T) {
	rec := &recordingRequest{}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, ScopeMethods())
	sc, _ := Find[*ScopeCapability](client)

	if got := sc.OwnScopes(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("OwnScopes on failure = %v, want empty records", got)
	}
	if got := sc.PathScopes(context.Background(), "resources"); got != nil {
		t.Errorf("PathScopes on failure = %+v, want nil", got)
	}
}

func TestResourceEndpoints(t *testing.T) {
	rec := &recordingRequest{responses: map[string]Response{
		"/resources":            okJSON([]core.Resource{{ID: "r1", Plugin: "weather"}}),
		"/resources/weather/r1": okJSON(core.Resource{ID: "r1", Plugin: "weather"}),
	}}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, ResourceMethods())
	rc, _ := Find[*ResourceCapability](client)

	list := rc.ListResources(context.Background())
	if len(list) != 1 || list[0].ID != "r1" {
		t.Errorf("ListResources = %+v, want one r1", list)
	}

	single := rc.GetResource(context.Background(), "weather", "r1")
	if single == nil || single.ID != "r1" {
		t.Errorf("GetResource = %+v, want r1", single)
	}

	if rec.endpoints[1] != "/resources/weather/r1" {
		t.Errorf("single fetch endpoint = %q, want /resources/weather/r1", rec.endpoints[1])
	}
}

func TestExecuteOnResourceBody(t *testing.T) {
	rec := &recordingRequest{responses: map[string]Response{
		"/resources/execute": okJSON(nil),
	}}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, ResourceMethods())
	rc, _ := Find[*ResourceCapability](client)

	executor := core.Executor{ID: "x1", Plugin: "weather", Name: "refresh"}
	target := core.Resource{ID: "r1", Plugin: "weather"}
	rc.ExecuteOnResource(context.Background(), executor, map[string]any{"force": true}, target)

	body := rec.bodies[0].(executeRequest)
	if body.Executor.ID != "x1" || body.Target.ID != "r1" {
		t.Errorf("execute body = %+v, want executor x1 on target r1", body)
	}
	if body.Args["force"] != true {
		t.Errorf("execute args = %v, want force=true", body.Args)
	}
}

func TestPipelineCreateForcesType(t *testing.T) {
	rec := &recordingRequest{responses: map[string]Response{
		"/pipelines/io/triggers": okJSON(core.PipelineIO{ID: "io1", Type: core.IOTrigger, Name: "deploy"}),
		"/pipelines/io/data":     okJSON(core.PipelineIO{ID: "io2", Type: core.IOData, Name: "ingest"}),
	}}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, PipelineIOMethods())
	pc, _ := Find[*PipelineIOCapability](client)

	// The capability stamps the type; callers cannot cross the two kinds.
	pc.CreateTriggerIO(context.Background(), core.PipelineIOModel{Type: core.IOData, Name: "deploy"})
	pc.CreateDataIO(context.Background(), core.PipelineIOModel{Type: core.IOTrigger, Name: "ingest"})

	trigger := rec.bodies[0].(core.PipelineIOModel)
	if trigger.Type != core.IOTrigger {
		t.Errorf("trigger create body type = %q, want trigger", trigger.Type)
	}
	data := rec.bodies[1].(core.PipelineIOModel)
	if data.Type != core.IOData {
		t.Errorf("data create body type = %q, want data", data.Type)
	}
}

func TestPluginLookup(t *testing.T) {
	rec := &recordingRequest{responses: map[string]Response{
		"/plugins": okJSON(map[string]core.PluginManifest{
			"weather": {Slug: "weather", Name: "Weather"},
		}),
		"/plugins/weather": okJSON(core.PluginManifest{Slug: "weather", Name: "Weather"}),
	}}
	client := ComposeSnapshot(readySnapshot("s1", nil), rec.request, nil, PluginMethods())
	pc, _ := Find[*PluginCapability](client)

	plugins := pc.ListPlugins(context.Background())
	if len(plugins) != 1 || plugins["weather"].Name != "Weather" {
		t.Errorf("ListPlugins = %+v, want weather", plugins)
	}

	if m := pc.GetPlugin(context.Background(), "weather"); m == nil || m.Slug != "weather" {
		t.Errorf("GetPlugin = %+v, want weather", m)
	}
	if m := pc.GetPlugin(context.Background(), "missing"); m != nil {
		t.Errorf("GetPlugin for unknown plugin = %+v, want nil", m)
	}
}
