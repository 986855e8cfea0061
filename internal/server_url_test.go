package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerURL_IsUnixSocket_True(t *testing.T) {
	assert.True(t, ServerURL{"/path/to/socket"}.IsUnixSocket())
}

func TestServerURL_IsUnixSocket_False(t *testing.T) {
	assert.False(t, ServerURL{"localhost:8080"}.IsUnixSocket())
}

func TestServerURL_UnixSocket(t *testing.T) {
	assert.Equal(t, "/path/to/socket", ServerURL{"/path/to/socket"}.UnixSocket())
	assert.Equal(t, "", ServerURL{"localhost:8080"}.UnixSocket())
}

func TestServerURL_BaseURL(t *testing.T) {
	assert.Equal(t, "http://unix", ServerURL{"/path/to/socket"}.BaseURL())
	assert.Equal(t, "https://proxy.example.org", ServerURL{"https://proxy.example.org/"}.BaseURL())
}

func TestServerURL_RoundTripper(t *testing.T) {
	assert.NotNil(t, ServerURL{"/path/to/socket"}.RoundTripper())
	assert.NotNil(t, ServerURL{"https://proxy.example.org"}.RoundTripper())
}
