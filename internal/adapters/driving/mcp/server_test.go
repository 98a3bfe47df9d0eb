package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing ports returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSettings)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Settings:   newMockSettings(),
			Generators: factoryFor(&mockGenerator{}, nil, nil),
		})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ports *Ports
		want  error
	}{
		{"empty", &Ports{}, ErrMissingSettings},
		{"no generator", &Ports{Settings: newMockSettings()}, ErrMissingGenerator},
		{"runs optional", &Ports{Settings: newMockSettings(), Generators: factoryFor(&mockGenerator{}, nil, nil)}, nil},
		{"all ports", &Ports{
			Settings:   newMockSettings(),
			Generators: factoryFor(&mockGenerator{}, nil, nil),
			Runs:       &mockRunHistory{},
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
