package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://wall.example.com/displays/3"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://wall.example.com", false, true},

		{"different host", "https://evil.com", false, false},
		{"different port", "https://wall.example.com:9090", false, false},
		{"http instead of https", "http://wall.example.com", false, false},
		{"subdomain", "https://a.wall.example.com", false, false},

		{"localhost dev", "http://localhost:8080", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCheckOrigin(appURL, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://wall.example.com/displays", "https://wall.example.com"},
		{"http://localhost:8080/ws", "http://localhost:8080"},
		{"", ""},
		{"mailto:ops@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
