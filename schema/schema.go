// Package schema derives a JSON-Schema-like tool input descriptor from a Go
// struct type by reflection, using invopop/jsonschema as the reflection
// engine and down-converting its richer output to the flatter shape MCP
// clients expect.
package schema

import (
	"github.com/invopop/jsonschema"
)

// reflector is shared across calls; invopop/jsonschema reflectors carry no
// mutable per-call state.
var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// Reflect derives the inputSchema for a tool whose arguments are declared as
// the struct type A. A field is listed in "required" unless its json tag
// carries omitempty; a "jsonschema:required" tag lists it regardless. Being
// a pointer, or carrying a "jsonschema:default=..." tag, does not by itself
// leave a field out of "required". The returned map always has a "type" and
// "properties" key; "required" is present only when non-empty, matching the
// convention that empty required lists are omitted entirely rather than
// emitted as [].
func Reflect[A any]() map[string]any {
	s := reflector.Reflect(new(A))
	if s == nil || s.Type != "object" {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties(s),
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, name := range s.Required {
			required[i] = name
		}
		out["required"] = required
	}
	return out
}

// Required returns the names of A's required properties, in the order
// invopop/jsonschema declares them. Callers that need to presence-check
// incoming arguments against the same rules Reflect used to build
// "required" call this instead of re-deriving the list from the map
// Reflect returns.
func Required[A any]() []string {
	s := reflector.Reflect(new(A))
	if s == nil {
		return nil
	}
	return append([]string(nil), s.Required...)
}

func properties(s *jsonschema.Schema) map[string]any {
	props := map[string]any{}
	if s.Properties == nil {
		return props
	}
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		props[el.Key] = descriptor(el.Value)
	}
	return props
}

// descriptor converts a single jsonschema.Schema node into the flattened
// property descriptor MCP clients expect: type (string or, for a nullable
// union, a two-element array ending in "null"), description, enum, item
// schema for arrays, and nested properties for objects.
func descriptor(s *jsonschema.Schema) map[string]any {
	if s == nil {
		return map[string]any{}
	}

	d := map[string]any{}

	switch {
	case len(s.Type) > 0:
		d["type"] = s.Type
	case len(s.OneOf) > 0 || len(s.AnyOf) > 0:
		d["type"] = unionType(s)
	default:
		// "any"-typed parameters emit an empty schema object.
	}

	if s.Format != "" {
		d["format"] = s.Format
	}
	if s.Description != "" {
		d["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		d["enum"] = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		d["items"] = descriptor(s.Items)
	}
	if s.Type == "object" && s.Properties != nil {
		d["properties"] = properties(s)
	}

	return d
}

// unionType flattens a set of alternative subschemas (as invopop/jsonschema
// emits for a field tagged "jsonschema:nullable" or a hand-annotated union)
// into the "T|null" and
// multi-type array forms.
func unionType(s *jsonschema.Schema) []string {
	alts := s.OneOf
	if len(alts) == 0 {
		alts = s.AnyOf
	}
	types := make([]string, 0, len(alts))
	for _, alt := range alts {
		if alt.Type != "" {
			types = append(types, alt.Type)
		} else {
			types = append(types, "null")
		}
	}
	return types
}
