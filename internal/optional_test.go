package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Name      Optional[string] `json:"name"`
		Highlight Optional[int]    `json:"highlight_count"`
		Notif     Optional[int]    `json:"notification_count"`
		Topic     Optional[string] `json:"topic"`
	}
	err := json.Unmarshal([]byte(`{"name":"","highlight_count":0,"topic":null}`), &body)
	require.NoError(t, err)

	assert.True(t, body.Name.Set, "empty string was sent so must be set")
	assert.Equal(t, "", body.Name.Value)
	assert.True(t, body.Highlight.Set, "zero was sent so must be set")
	assert.False(t, body.Notif.Set, "missing key must be unset")
	assert.False(t, body.Topic.Set, "null must be unset")
}

func TestOptionalMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Optional[int] `json:"a"`
		B Optional[int] `json:"b"`
	}{A: Some(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0,"b":null}`, string(b))
}

func TestOptionalOr(t *testing.T) {
	var o Optional[string]
	assert.Equal(t, "dft", o.Or("dft"))
	o = Some("val")
	assert.Equal(t, "val", o.Or("dft"))
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, "val", v)
}
