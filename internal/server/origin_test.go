package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{"http://localhost:8080", " https://Chat.Example.com ", "not a url", ""})

	assert.Equal(t, []string{"not a url"}, p.invalid)

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"HTTP://LOCALHOST:8080", true},
		{"https://chat.example.com", true},
		{"http://chat.example.com", false},
		{"http://localhost:3000", false},
		{"not-a-url", false},
		{"http://", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.allows(requestWithOrigin(tt.origin)), "origin %q", tt.origin)
	}
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"})

	assert.True(t, p.allows(requestWithOrigin("https://anything.example")))
	assert.False(t, p.allows(requestWithOrigin("")), "a missing origin is never allowed")
}
