// Package tools defines the function schemas an agent exposes to its
// language model and the dispatcher that validates and executes the
// model's tool-call requests.
//
// A Schema binds a function name and typed parameter list to a Go
// handler. Schemas are registered once per agent configuration; names
// must be unique within a configuration. The Dispatcher checks every
// requested call against its schema before the handler runs, so a
// malformed request never reaches user code.
package tools

import (
	"fmt"

	"github.com/google/uuid"
)

// Param describes one function parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, integer, number, boolean, object, array
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema is a callable function exposed to the LLM.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`

	// Handler executes the call. Soft failures should be returned as
	// friendly strings; reserve error for real faults.
	Handler func(args map[string]any) (string, error) `json:"-"`
}

// JSONSchema renders the parameter list as a JSON-Schema object in the
// shape tool-calling LLM APIs expect.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Params))
	var required []string

	for _, p := range s.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Call is a tool invocation requested by the LLM.
type Call struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// NewCall builds a Call with a fresh ID.
func NewCall(name string, args map[string]any) Call {
	return Call{ID: uuid.NewString(), Name: name, Args: args}
}

// Result is the outcome of dispatching one Call.
type Result struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`

	// Err holds the classified failure for callers that need to
	// distinguish validation from execution errors. Content already
	// carries the model-facing message.
	Err error `json:"-"`
}

// Table indexes schemas by name.
type Table struct {
	schemas map[string]Schema
	order   []string
}

// NewTable builds a Table from a schema list, rejecting duplicates.
func NewTable(schemas []Schema) (Table, error) {
	t := Table{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if _, exists := t.schemas[s.Name]; exists {
			return Table{}, fmt.Errorf("%w: %q", ErrDuplicateSchema, s.Name)
		}
		t.schemas[s.Name] = s
		t.order = append(t.order, s.Name)
	}
	return t, nil
}

// Get returns the schema for name.
func (t Table) Get(name string) (Schema, bool) {
	s, ok := t.schemas[name]
	return s, ok
}

// Names returns schema names in registration order.
func (t Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Schemas returns the schemas in registration order.
func (t Table) Schemas() []Schema {
	out := make([]Schema, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.schemas[name])
	}
	return out
}

// Len returns the number of registered schemas.
func (t Table) Len() int { return len(t.order) }
