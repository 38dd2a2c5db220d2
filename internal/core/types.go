// Package core defines the foundational types for the raven platform client.
// These mirror the server's wire model: sessions and users, resources with
// typed properties, plugin manifests, executors, pipeline I/O entry points,
// the permission scope tree, and the event envelope pushed over the socket.
package core

import (
	"encoding/json"
)

// Session is a server-tracked client session. It exists even when no user
// is logged in; UserID is nil for anonymous sessions.
type Session struct {
	ID          string  `json:"id"`
	LastRequest string  `json:"last_request"`
	UserID      *string `json:"user_id"`
}

// User is an authenticated platform account. Admin short-circuits every
// scope check to true.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Admin    bool     `json:"admin"`
	Scopes   []string `json:"scopes"`
}

// AuthState is the atomic unit returned by the bootstrap endpoint.
// User is non-nil iff the session is authenticated.
type AuthState struct {
	Session Session `json:"session"`
	User    *User   `json:"user"`
}

// Authenticated reports whether the state carries a logged-in user.
func (a *AuthState) Authenticated() bool {
	return a != nil && a.User != nil
}

// ResourcePropertyType enumerates the value kinds a resource property can hold.
type ResourcePropertyType string

const (
	PropertyObject   ResourcePropertyType = "object"
	PropertyText     ResourcePropertyType = "text"
	PropertyNumber   ResourcePropertyType = "number"
	PropertyBoolean  ResourcePropertyType = "boolean"
	PropertyDate     ResourcePropertyType = "date"
	PropertyTime     ResourcePropertyType = "time"
	PropertyDatetime ResourcePropertyType = "datetime"
	PropertyColor    ResourcePropertyType = "color"
	PropertyOption   ResourcePropertyType = "option"
	PropertyList     ResourcePropertyType = "list"
)

// ResourceProperty is a single named, typed value on a resource.
type ResourceProperty struct {
	Label  *string              `json:"label"`
	Type   ResourcePropertyType `json:"type"`
	Value  json.RawMessage      `json:"value"`
	Icon   *string              `json:"icon"`
	Suffix *string              `json:"suffix"`
	Prefix *string              `json:"prefix"`
	Hidden *string              `json:"hidden"`
}

// ResourceMetadata carries display information for a resource.
type ResourceMetadata struct {
	DisplayName *string  `json:"display_name"`
	Icon        *string  `json:"icon"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
}

// Resource is a plugin-managed entity exposing named typed properties.
// StateKey names the entry in Properties shown in summary views.
type Resource struct {
	ID         string                      `json:"id"`
	Plugin     string                      `json:"plugin"`
	Metadata   ResourceMetadata            `json:"metadata"`
	Properties map[string]ResourceProperty `json:"properties"`
	StateKey   string                      `json:"state_key"`
}

// DisplayName returns the metadata display name, falling back to the id.
func (r *Resource) DisplayName() string {
	if r.Metadata.DisplayName != nil && *r.Metadata.DisplayName != "" {
		return *r.Metadata.DisplayName
	}
	return r.ID
}

// StateProperty returns the designated primary property, if present.
func (r *Resource) StateProperty() (ResourceProperty, bool) {
	p, ok := r.Properties[r.StateKey]
	return p, ok
}

// ExecutionTarget is a resource selector used by executors. Each field is
// either a single value or a list; a nil field places no restriction.
type ExecutionTarget struct {
	Categories json.RawMessage `json:"categories,omitempty"`
	Tags       json.RawMessage `json:"tags,omitempty"`
	ID         json.RawMessage `json:"id,omitempty"`
	Fragment   map[string]any  `json:"fragment,omitempty"`
}

// ExecutorArgument describes one parameter of an executor. The common fields
// are typed; type-specific settings (min/max, options, format, ...) stay in
// the raw message so specs the client does not interpret still round-trip.
type ExecutorArgument struct {
	Type        *string `json:"type"`
	Name        string  `json:"name"`
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
	Placeholder *string `json:"placeholder,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Advanced    bool    `json:"advanced,omitempty"`
	Required    bool    `json:"required,omitempty"`
}

// Executor is a named, parameterized action invocable against resources.
type Executor struct {
	ID          string                      `json:"id"`
	Plugin      string                      `json:"plugin"`
	Export      string                      `json:"export"`
	Name        string                      `json:"name"`
	Description *string                     `json:"description,omitempty"`
	Targets     json.RawMessage             `json:"targets,omitempty"`
	Arguments   map[string]ExecutorArgument `json:"arguments,omitempty"`
}

// PluginExport describes one export entry in a plugin manifest.
type PluginExport struct {
	Type       string         `json:"type"`
	ImportPath *string        `json:"import_path"`
	Member     string         `json:"member"`
	ContextKey string         `json:"context_key,omitempty"`
	IsAsync    bool           `json:"is_async,omitempty"`
	Kwargs     map[string]any `json:"kwargs,omitempty"`
}

// PluginDependency is an external requirement declared by a plugin.
type PluginDependency struct {
	Name   string  `json:"name"`
	Ref    string  `json:"ref"`
	Source *string `json:"source"`
}

// PluginManifest describes an installed plugin.
type PluginManifest struct {
	Slug         string                  `json:"slug"`
	Name         string                  `json:"name"`
	Description  *string                 `json:"description"`
	Icon         *string                 `json:"icon"`
	Dependencies []PluginDependency      `json:"dependencies"`
	Entrypoint   string                  `json:"entrypoint"`
	Exports      map[string]PluginExport `json:"exports"`
}

// PipelineIOType distinguishes the two pipeline entry point kinds.
type PipelineIOType string

const (
	IOTrigger PipelineIOType = "trigger"
	IOData    PipelineIOType = "data"
)

// IOField is one input field of a data-type pipeline I/O.
type IOField struct {
	Type         string          `json:"type"`
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Value        json.RawMessage `json:"value"`
	DefaultValue json.RawMessage `json:"default_value"`
}

// PipelineIO is a named external entry point into an automation pipeline.
// Label is meaningful for trigger entries, Fields for data entries.
type PipelineIO struct {
	ID          string         `json:"id"`
	Type        PipelineIOType `json:"type"`
	Name        string         `json:"name"`
	Icon        *string        `json:"icon"`
	Description *string        `json:"description"`
	Label       *string        `json:"label,omitempty"`
	Fields      []IOField      `json:"fields,omitempty"`
}

// PipelineIOModel is the create/edit request body for a pipeline I/O.
type PipelineIOModel struct {
	Type        PipelineIOType `json:"type"`
	Name        string         `json:"name"`
	Icon        *string        `json:"icon"`
	Description *string        `json:"description"`
	Label       *string        `json:"label,omitempty"`
	Fields      []IOField      `json:"fields,omitempty"`
}

// Scope is one node of the server's permission tree. Paths are dot-delimited
// (e.g. "resources.plugin.weather.execute"); the client treats them as
// opaque tokens and leaves wildcard resolution to the server.
type Scope struct {
	ID          string       `json:"id"`
	Parent      *string      `json:"parent"`
	DisplayName *string      `json:"display_name"`
	Path        string       `json:"path"`
	Children    ScopeRecords `json:"children"`
}

// ScopeRecords maps scope path segments to their subtree.
type ScopeRecords map[string]Scope

// EventChannel distinguishes globally-broadcast events from session-scoped ones.
type EventChannel string

const (
	ChannelGlobal  EventChannel = "global"
	ChannelSession EventChannel = "session"
)

// Event is the envelope pushed over the event socket. Subscribers lists the
// channel names this event should be dispatched to on the client.
type Event struct {
	ID          string          `json:"id"`
	Plugin      *string         `json:"plugin"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Channel     EventChannel    `json:"channel"`
	Data        json.RawMessage `json:"data"`
	Subscribers []string        `json:"subscribers"`
}

// DecodeData unmarshals the event payload into out.
func (e *Event) DecodeData(out any) error {
	return json.Unmarshal(e.Data, out)
}
