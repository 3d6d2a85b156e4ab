package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Message string `json:"message" jsonschema:"required,description=Text to echo back"`
	Loud    *bool  `json:"loud,omitempty" jsonschema:"description=Uppercase the message"`
}

func TestReflectMarksPointerFieldsOptional(t *testing.T) {
	out := Reflect[echoArgs]()

	assert.Equal(t, "object", out["type"])
	props, ok := out["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "message")
	require.Contains(t, props, "loud")

	message := props["message"].(map[string]any)
	assert.Equal(t, "string", message["type"])
	assert.Equal(t, "Text to echo back", message["description"])

	required, ok := out["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "message")
	assert.NotContains(t, required, "loud")
}

type noFieldsArgs struct{}

func TestReflectOmitsRequiredWhenEmpty(t *testing.T) {
	out := Reflect[noFieldsArgs]()
	_, hasRequired := out["required"]
	assert.False(t, hasRequired)
}

type nestedArgs struct {
	Tags []string       `json:"tags"`
	Meta map[string]int `json:"meta"`
}

func TestReflectArrayItemSchema(t *testing.T) {
	out := Reflect[nestedArgs]()
	props := out["properties"].(map[string]any)
	tags := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	items, ok := tags["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", items["type"])
}
