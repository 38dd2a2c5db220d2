package resources

import (
	"strings"

	"github.com/raven-automation/ravenctl/internal/core"
)

// Filter narrows a resource list the way the browser's resource browser
// does: exact category match, exact tag match, and a case-insensitive
// substring query over id, display name and plugin. Empty criteria match
// everything.
type Filter struct {
	Category string
	Tag      string
	Query    string
}

// Apply returns the resources matching every set criterion, preserving
// input order.
func (f Filter) Apply(list []core.Resource) []core.Resource {
	var out []core.Resource
	for _, r := range list {
		if f.matches(&r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) matches(r *core.Resource) bool {
	if f.Category != "" {
		if r.Metadata.Category == nil || *r.Metadata.Category != f.Category {
			return false
		}
	}
	if f.Tag != "" && !containsString(r.Metadata.Tags, f.Tag) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		haystack := strings.ToLower(r.ID + " " + r.DisplayName() + " " + r.Plugin)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
