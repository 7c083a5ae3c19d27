package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{"lowercase", "a@example.com", "08168cd80dfd534a"},
		{"case is significant", "A@example.com", "d2b9f22857b3e599"},
		{"other user", "b@example.com", "e8f39b3e1382367d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := DeriveID(tt.email)
			assert.Equal(t, tt.expected, id)
			assert.Len(t, id, IDLength)
		})
	}
}

func TestDeriveIDDeterministic(t *testing.T) {
	assert.Equal(t, DeriveID("user@example.com"), DeriveID("user@example.com"))
	assert.NotEqual(t, DeriveID("user@example.com"), DeriveID(" user@example.com"))
}
