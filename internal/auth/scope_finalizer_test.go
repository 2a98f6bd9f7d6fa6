package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalizeScopes(t *testing.T) {
	restricted := &Client{ID: "c1", AllowedScopes: []string{"read"}}
	locked := &Client{ID: "c2", AllowedScopes: []string{}}
	unrestricted := &Client{ID: "c3"}
	user := "u1"

	tests := []struct {
		name      string
		limit     bool
		requested []string
		client    *Client
		want      []string
	}{
		{
			name:      "restricted client keeps only allowed scopes",
			limit:     true,
			requested: []string{"read", "write"},
			client:    restricted,
			want:      []string{"read"},
		},
		{
			name:      "order of the request is preserved",
			limit:     true,
			requested: []string{"write", "read", "admin"},
			client:    &Client{ID: "c4", AllowedScopes: []string{"admin", "read"}},
			want:      []string{"read", "admin"},
		},
		{
			name:      "empty allow-list grants nothing",
			limit:     true,
			requested: []string{"read"},
			client:    locked,
			want:      []string{},
		},
		{
			name:      "client without allow-list is not filtered",
			limit:     true,
			requested: []string{"read", "write"},
			client:    unrestricted,
			want:      []string{"read", "write"},
		},
		{
			name:      "filtering is off unless clients are limited",
			limit:     false,
			requested: []string{"read", "write"},
			client:    restricted,
			want:      []string{"read", "write"},
		},
		{
			name:      "nil client passes through",
			limit:     true,
			requested: []string{"read", "write"},
			want:      []string{"read", "write"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finalizer := NewScopeFinalizer(StaticSettings{LimitClientsToScopes: tt.limit})
			got := finalizer.FinalizeScopes(tt.requested, "client_credentials", tt.client, &user)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFinalizeScopesIgnoresGrantAndUser(t *testing.T) {
	finalizer := NewScopeFinalizer(StaticSettings{LimitClientsToScopes: true})
	client := &Client{ID: "c1", AllowedScopes: []string{"read"}}
	user := "u1"

	a := finalizer.FinalizeScopes([]string{"read", "write"}, "password", client, &user)
	b := finalizer.FinalizeScopes([]string{"read", "write"}, "client_credentials", client, nil)
	assert.Equal(t, a, b)
}
