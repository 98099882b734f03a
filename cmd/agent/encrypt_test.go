package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentjungle/internal/infra/config"
)

func TestEncryptCommand(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
	}{
		{"from args", []string{"AIza-secret"}, ""},
		{"from stdin", nil, "  AIza-secret  \nignored\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, encryptCommand(&out, strings.NewReader(tt.stdin), "pass", tt.args))

			line := strings.TrimSpace(out.String())
			require.True(t, strings.HasPrefix(line, "enc:"), line)

			plain, err := config.DecryptValue(strings.TrimPrefix(line, "enc:"), "pass")
			require.NoError(t, err)
			assert.Equal(t, "AIza-secret", plain)
		})
	}
}

func TestEncryptCommandErrors(t *testing.T) {
	err := encryptCommand(&bytes.Buffer{}, strings.NewReader(""), "", []string{"v"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTJUNGLE_CONFIG_KEY")

	err = encryptCommand(&bytes.Buffer{}, strings.NewReader("\n"), "pass", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage:")
}
