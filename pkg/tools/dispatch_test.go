package tools_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

func lightSchema(calls *int) tools.Schema {
	return tools.Schema{
		Name:        "turn_on_light",
		Description: "Turn on the light.",
		Handler: func(args map[string]any) (string, error) {
			*calls++
			return "light is on", nil
		},
	}
}

func volumeSchema(calls *int) tools.Schema {
	return tools.Schema{
		Name:        "set_volume",
		Description: "Set the speaker volume.",
		Params: []tools.Param{
			{Name: "level", Type: "integer", Description: "Volume from 0 to 100", Required: true},
			{Name: "unit", Type: "string", Enum: []any{"percent", "decibel"}, Default: "percent"},
		},
		Handler: func(args map[string]any) (string, error) {
			*calls++
			return "volume set", nil
		},
	}
}

func newDispatcher(t *testing.T, schemas ...tools.Schema) *tools.Dispatcher {
	t.Helper()
	table, err := tools.NewTable(schemas)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return tools.NewDispatcher(table, nil)
}

func TestNewTableRejectsDuplicateNames(t *testing.T) {
	var calls int
	_, err := tools.NewTable([]tools.Schema{lightSchema(&calls), lightSchema(&calls)})
	if !errors.Is(err, tools.ErrDuplicateSchema) {
		t.Fatalf("NewTable() error = %v, want ErrDuplicateSchema", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	var calls int
	d := newDispatcher(t, lightSchema(&calls))

	res := d.Dispatch(tools.NewCall("turn_on_light", nil))

	if res.IsError {
		t.Fatalf("Dispatch() returned error result: %s", res.Content)
	}
	if res.Content != "light is on" {
		t.Errorf("Content = %q, want %q", res.Content, "light is on")
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestDispatchUnknownFunction(t *testing.T) {
	var calls int
	d := newDispatcher(t, lightSchema(&calls))

	res := d.Dispatch(tools.NewCall("turn_o_light", nil))

	if !res.IsError {
		t.Fatal("Dispatch() of unknown function did not return error result")
	}
	if !errors.Is(res.Err, tools.ErrUnknownFunction) {
		t.Errorf("Err = %v, want ErrUnknownFunction", res.Err)
	}
	if !strings.Contains(res.Content, "turn_on_light") {
		t.Errorf("Content = %q, want suggestion mentioning turn_on_light", res.Content)
	}
	if calls != 0 {
		t.Errorf("handler calls = %d, want 0", calls)
	}
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	var calls int
	d := newDispatcher(t, volumeSchema(&calls))

	res := d.Dispatch(tools.NewCall("set_volume", map[string]any{}))

	if !errors.Is(res.Err, tools.ErrInvalidArgument) {
		t.Fatalf("Err = %v, want ErrInvalidArgument", res.Err)
	}
	if calls != 0 {
		t.Errorf("handler calls = %d, want 0", calls)
	}

	var verr *tools.ValidationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("Err type = %T, want *ValidationError", res.Err)
	}
	if verr.Param != "level" {
		t.Errorf("ValidationError.Param = %q, want %q", verr.Param, "level")
	}
}

func TestDispatchArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"mistyped level", map[string]any{"level": "loud"}, true},
		{"unknown parameter", map[string]any{"level": 50, "color": "red"}, true},
		{"enum violation", map[string]any{"level": 50, "unit": "furlong"}, true},
		{"whole float accepted as integer", map[string]any{"level": float64(50)}, false},
		{"fractional float rejected as integer", map[string]any{"level": 50.5}, true},
		{"enum default applied", map[string]any{"level": 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			d := newDispatcher(t, volumeSchema(&calls))

			res := d.Dispatch(tools.NewCall("set_volume", tt.args))

			if tt.wantErr {
				if !errors.Is(res.Err, tools.ErrInvalidArgument) {
					t.Errorf("Err = %v, want ErrInvalidArgument", res.Err)
				}
				if calls != 0 {
					t.Errorf("handler calls = %d, want 0", calls)
				}
				return
			}
			if res.IsError {
				t.Errorf("Dispatch() rejected valid args: %s", res.Content)
			}
			if calls != 1 {
				t.Errorf("handler calls = %d, want 1", calls)
			}
		})
	}
}

func TestDispatchHandlerError(t *testing.T) {
	d := newDispatcher(t, tools.Schema{
		Name:        "flaky",
		Description: "Always fails.",
		Handler: func(args map[string]any) (string, error) {
			return "", errors.New("device offline")
		},
	})

	res := d.Dispatch(tools.NewCall("flaky", nil))

	if !errors.Is(res.Err, tools.ErrExecution) {
		t.Fatalf("Err = %v, want ErrExecution", res.Err)
	}
	if !strings.Contains(res.Content, "device offline") {
		t.Errorf("Content = %q, want handler error text", res.Content)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := newDispatcher(t, tools.Schema{
		Name:        "volatile",
		Description: "Panics.",
		Handler: func(args map[string]any) (string, error) {
			panic("boom")
		},
	})

	res := d.Dispatch(tools.NewCall("volatile", nil))

	if !errors.Is(res.Err, tools.ErrExecution) {
		t.Fatalf("Err = %v, want ErrExecution after panic", res.Err)
	}
	if !res.IsError {
		t.Error("IsError = false, want true after panic")
	}
}

func TestJSONSchemaShape(t *testing.T) {
	var calls int
	schema := volumeSchema(&calls).JSONSchema()

	if schema["type"] != "object" {
		t.Errorf("type = %v, want object", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties has type %T, want map", schema["properties"])
	}
	level, ok := props["level"].(map[string]any)
	if !ok {
		t.Fatalf("level property missing")
	}
	if level["type"] != "integer" {
		t.Errorf("level type = %v, want integer", level["type"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "level" {
		t.Errorf("required = %v, want [level]", schema["required"])
	}
}
