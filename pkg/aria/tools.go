package aria

import (
	"fmt"
	"strings"
	"time"

	"github.com/lumenrobotics/go-aria/pkg/device"
	"github.com/lumenrobotics/go-aria/pkg/memory"
	"github.com/lumenrobotics/go-aria/pkg/tools"
)

// ToolDeps holds the runtime dependencies the built-in tools act on.
// A nil Device makes the device tools answer with a soft failure
// instead of erroring; nothing here is required.
type ToolDeps struct {
	Device device.Controller
	Memory *memory.Memory
}

type setVolumeArgs struct {
	Level int `json:"level" jsonschema:"required,description=Volume from 0 to 100"`
}

type rememberPersonArgs struct {
	Name string `json:"name" jsonschema:"required,description=The person's name"`
	Fact string `json:"fact" jsonschema:"required,description=One fact to remember about them"`
}

type recallPersonArgs struct {
	Name string `json:"name" jsonschema:"required,description=The person's name"`
}

type setContextArgs struct {
	Key   string `json:"key" jsonschema:"required,description=Fact name like owner_name or home_city"`
	Value string `json:"value" jsonschema:"required,description=The fact itself"`
}

type getContextArgs struct {
	Key string `json:"key" jsonschema:"required,description=Fact name to look up"`
}

// Tools returns the built-in function schemas. Handlers return friendly
// strings for soft failures and reserve error for real faults, so the
// model can relay problems instead of the turn dying.
func Tools(deps ToolDeps) []tools.Schema {
	return []tools.Schema{
		{
			Name:        "turn_on_light",
			Description: "Turn on the front light.",
			Handler: func(args map[string]any) (string, error) {
				return setLight(deps.Device, true)
			},
		},
		{
			Name:        "turn_off_light",
			Description: "Turn off the front light.",
			Handler: func(args map[string]any) (string, error) {
				return setLight(deps.Device, false)
			},
		},
		{
			Name:        "set_volume",
			Description: "Set the speaker volume.",
			Params:      tools.ParamsFor[setVolumeArgs](),
			Handler: func(args map[string]any) (string, error) {
				if deps.Device == nil {
					return "I'm not connected to a body right now, so I can't change the volume.", nil
				}
				level := intArg(args, "level")
				if level < 0 || level > 100 {
					return "Volume has to be between 0 and 100.", nil
				}
				if err := deps.Device.SetVolume(level); err != nil {
					return "", fmt.Errorf("set volume: %w", err)
				}
				return fmt.Sprintf("Volume set to %d", level), nil
			},
		},
		{
			Name:        "get_time",
			Description: "Get the current date and time.",
			Handler: func(args map[string]any) (string, error) {
				return time.Now().Format("Monday, January 2, 3:04 PM"), nil
			},
		},
		{
			Name:        "remember_person",
			Description: "Store a fact about a person so you can recall it later.",
			Params:      tools.ParamsFor[rememberPersonArgs](),
			Handler: func(args map[string]any) (string, error) {
				if deps.Memory == nil {
					return "My memory isn't available right now.", nil
				}
				name, _ := args["name"].(string)
				fact, _ := args["fact"].(string)
				deps.Memory.RememberPerson(name, fact)
				return fmt.Sprintf("Got it, I'll remember that about %s.", name), nil
			},
		},
		{
			Name:        "recall_person",
			Description: "Recall what you know about a person.",
			Params:      tools.ParamsFor[recallPersonArgs](),
			Handler: func(args map[string]any) (string, error) {
				if deps.Memory == nil {
					return "My memory isn't available right now.", nil
				}
				name, _ := args["name"].(string)
				facts := deps.Memory.RecallPerson(name)
				if len(facts) == 0 {
					return fmt.Sprintf("I don't know anything about %s yet.", name), nil
				}
				return fmt.Sprintf("About %s: %s", name, strings.Join(facts, "; ")), nil
			},
		},
		{
			Name:        "set_context",
			Description: "Store a situational fact, like the owner's name or the home city.",
			Params:      tools.ParamsFor[setContextArgs](),
			Handler: func(args map[string]any) (string, error) {
				if deps.Memory == nil {
					return "My memory isn't available right now.", nil
				}
				key, _ := args["key"].(string)
				value, _ := args["value"].(string)
				deps.Memory.SetContext(key, value)
				return fmt.Sprintf("Noted: %s is %s.", key, value), nil
			},
		},
		{
			Name:        "get_context",
			Description: "Look up a stored situational fact.",
			Params:      tools.ParamsFor[getContextArgs](),
			Handler: func(args map[string]any) (string, error) {
				if deps.Memory == nil {
					return "My memory isn't available right now.", nil
				}
				key, _ := args["key"].(string)
				value, ok := deps.Memory.GetContext(key)
				if !ok {
					return fmt.Sprintf("I don't have anything stored for %s.", key), nil
				}
				return value, nil
			},
		},
	}
}

func setLight(dev device.Controller, on bool) (string, error) {
	if dev == nil {
		return "I'm not connected to a body right now, so there's no light to switch.", nil
	}
	if err := dev.SetLight(on); err != nil {
		return "", fmt.Errorf("set light: %w", err)
	}
	if on {
		return "The light is on.", nil
	}
	return "The light is off.", nil
}

// intArg reads an integer argument. JSON-decoded numbers arrive as
// float64; the dispatcher has already checked the value is whole.
func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
