package tools

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Dispatcher validates and executes tool calls against a schema table.
type Dispatcher struct {
	table  Table
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given table.
func NewDispatcher(table Table, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		table:  table,
		logger: logger.With("component", "tools.dispatcher"),
	}
}

// Dispatch resolves, validates, and synchronously executes one call.
// It never panics: handler errors and panics are converted into error
// results so the caller can inform the model and continue the turn.
func (d *Dispatcher) Dispatch(call Call) Result {
	schema, ok := d.table.Get(call.Name)
	if !ok {
		msg := fmt.Sprintf("unknown function %q", call.Name)
		if suggestions := d.suggest(call.Name); len(suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
		}
		d.logger.Warn("dispatch rejected", "function", call.Name, "reason", "unknown")
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "Error: " + msg,
			IsError: true,
			Err:     fmt.Errorf("%w: %q", ErrUnknownFunction, call.Name),
		}
	}

	args := fillDefaults(schema, call.Args)
	if err := validateArgs(schema, args); err != nil {
		d.logger.Warn("dispatch rejected", "function", call.Name, "reason", err)
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "Error: " + err.Error(),
			IsError: true,
			Err:     err,
		}
	}

	content, err := d.execute(schema, args)
	if err != nil {
		d.logger.Warn("handler failed", "function", call.Name, "error", err)
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("Error: %v", err),
			IsError: true,
			Err:     &ExecutionError{Function: call.Name, Err: err},
		}
	}

	d.logger.Debug("dispatched", "function", call.Name, "result_len", len(content))
	return Result{CallID: call.ID, Name: call.Name, Content: content}
}

// execute runs the handler, converting panics into errors.
func (d *Dispatcher) execute(schema Schema, args map[string]any) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if schema.Handler == nil {
		return "", fmt.Errorf("no handler bound")
	}
	return schema.Handler(args)
}

// suggest returns close matches for a misspelled function name.
func (d *Dispatcher) suggest(name string) []string {
	ranks := fuzzy.RankFindNormalizedFold(name, d.table.Names())
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)
	out := make([]string, 0, 3)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// fillDefaults copies the argument map, applying schema defaults for
// absent optional parameters.
func fillDefaults(schema Schema, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range schema.Params {
		if p.Default == nil {
			continue
		}
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = p.Default
		}
	}
	return out
}

// validateArgs checks names, required flags, types, and enums.
func validateArgs(schema Schema, args map[string]any) error {
	byName := make(map[string]Param, len(schema.Params))
	for _, p := range schema.Params {
		byName[p.Name] = p
	}

	for _, p := range schema.Params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return &ValidationError{Function: schema.Name, Param: p.Name, Reason: "is required"}
		}
	}

	for name, value := range args {
		p, ok := byName[name]
		if !ok {
			return &ValidationError{Function: schema.Name, Param: name, Reason: "is not a declared parameter"}
		}
		if p.Type != "" && !matchesType(p.Type, value) {
			return &ValidationError{Function: schema.Name, Param: name, Reason: fmt.Sprintf("must be of type %s", p.Type)}
		}
		if len(p.Enum) > 0 && !inEnum(p.Enum, value) {
			return &ValidationError{Function: schema.Name, Param: name, Reason: fmt.Sprintf("must be one of %v", p.Enum)}
		}
	}
	return nil
}

// matchesType checks a JSON-decoded value against a JSON-Schema type
// name. Numbers decoded from JSON arrive as float64, so integer accepts
// whole-valued floats.
func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		return isInteger(value)
	case "object":
		if value == nil {
			return false
		}
		return reflect.TypeOf(value).Kind() == reflect.Map
	case "array":
		if value == nil {
			return false
		}
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Slice || kind == reflect.Array
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == float64(int64(v))
	case float32:
		return v == float32(int32(v))
	default:
		return false
	}
}

func inEnum(enum []any, value any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, value) {
			return true
		}
		// JSON decoding turns integer enum entries into float64.
		if ef, ok := toFloat(e); ok {
			if vf, vok := toFloat(value); vok && ef == vf {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
