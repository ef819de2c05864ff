package tools_test

import (
	"testing"

	"github.com/lumenrobotics/go-aria/pkg/tools"
)

type setVolumeArgs struct {
	Level int    `json:"level" jsonschema:"required,description=Volume from 0 to 100"`
	Unit  string `json:"unit,omitempty" jsonschema:"enum=percent,enum=decibel"`
}

func TestParamsFor(t *testing.T) {
	params := tools.ParamsFor[setVolumeArgs]()
	if len(params) != 2 {
		t.Fatalf("ParamsFor() returned %d params, want 2", len(params))
	}

	level := params[0]
	if level.Name != "level" {
		t.Errorf("params[0].Name = %q, want level", level.Name)
	}
	if level.Type != "integer" {
		t.Errorf("level.Type = %q, want integer", level.Type)
	}
	if !level.Required {
		t.Error("level.Required = false, want true")
	}
	if level.Description != "Volume from 0 to 100" {
		t.Errorf("level.Description = %q", level.Description)
	}

	unit := params[1]
	if unit.Name != "unit" {
		t.Errorf("params[1].Name = %q, want unit", unit.Name)
	}
	if unit.Required {
		t.Error("unit.Required = true, want false")
	}
	if len(unit.Enum) != 2 {
		t.Errorf("unit.Enum = %v, want two values", unit.Enum)
	}
}

func TestParamsForRoundTripsThroughTable(t *testing.T) {
	schema := tools.Schema{
		Name:        "set_volume",
		Description: "Set the speaker volume.",
		Params:      tools.ParamsFor[setVolumeArgs](),
		Handler: func(args map[string]any) (string, error) {
			return "ok", nil
		},
	}
	table, err := tools.NewTable([]tools.Schema{schema})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	d := tools.NewDispatcher(table, nil)
	res := d.Dispatch(tools.NewCall("set_volume", map[string]any{"level": 3}))
	if res.IsError {
		t.Fatalf("Dispatch() error result: %s", res.Content)
	}

	res = d.Dispatch(tools.NewCall("set_volume", map[string]any{"unit": "percent"}))
	if res.Err == nil {
		t.Error("Dispatch() without required level succeeded, want validation error")
	}
}
