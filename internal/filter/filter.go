// Package filter compiles boolean expressions that select state events.
//
// Expressions use the expr language and see one event at a time:
//
//	kind == "change" && resource == "network-devices"
//	"alive-status" in fields
//	any(updated, .entity == "d1" && .new == "offline")
//	kind == "resource-unavailable"
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/muurk/multy/internal/state"
)

// Change is an updated field as seen by expressions.
type Change struct {
	Entity string `expr:"entity"`
	Field  string `expr:"field"`
	Old    any    `expr:"old"`
	New    any    `expr:"new"`
}

// Env is the expression environment built from one event.
type Env struct {
	Kind     string   `expr:"kind"`
	Resource string   `expr:"resource"`
	Added    []string `expr:"added"`
	Removed  []string `expr:"removed"`
	Updated  []Change `expr:"updated"`
	// Fields lists every updated field name once, sorted
	Fields []string `expr:"fields"`
	// Entities lists every touched entity id once, sorted
	Entities []string `expr:"entities"`
	Error    string   `expr:"error"`
}

// NewEnv flattens ev into an expression environment.
func NewEnv(ev state.Event) Env {
	env := Env{
		Kind:     string(ev.Kind),
		Resource: ev.Resource,
		Error:    ev.Error,
	}
	entities := map[string]bool{}
	fields := map[string]bool{}
	for _, e := range ev.Added {
		env.Added = append(env.Added, e.ID)
		entities[e.ID] = true
	}
	for _, e := range ev.Removed {
		env.Removed = append(env.Removed, e.ID)
		entities[e.ID] = true
	}
	for _, c := range ev.Updated {
		env.Updated = append(env.Updated, Change{Entity: c.Entity, Field: c.Field, Old: c.Old, New: c.New})
		entities[c.Entity] = true
		fields[c.Field] = true
	}
	env.Entities = keys(entities)
	env.Fields = keys(fields)
	return env
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filter is a compiled event predicate. The zero Filter and a nil *Filter
// match every event.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses source into a filter. An empty source matches everything.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", source, err)
	}
	return &Filter{source: source, program: program}, nil
}

// Match reports whether ev satisfies the filter.
func (f *Filter) Match(ev state.Event) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, NewEnv(ev))
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
