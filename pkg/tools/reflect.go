package tools

import "github.com/invopop/jsonschema"

// ParamsFor derives a parameter list from a tagged argument struct, so
// built-in tools declare typed structs instead of hand-written maps:
//
//	type setVolumeArgs struct {
//		Level int `json:"level" jsonschema:"required,description=Volume from 0 to 100"`
//	}
//	Params: ParamsFor[setVolumeArgs]()
func ParamsFor[T any]() []Param {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var params []Param
	if schema.Properties == nil {
		return params
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		p := Param{
			Name:        pair.Key,
			Type:        prop.Type,
			Description: prop.Description,
			Required:    required[pair.Key],
			Default:     prop.Default,
		}
		if len(prop.Enum) > 0 {
			p.Enum = append([]any(nil), prop.Enum...)
		}
		params = append(params, p)
	}
	return params
}
