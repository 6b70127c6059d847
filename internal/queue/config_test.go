package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, JoinFailFast, cfg.Join)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Merge(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Merge(nil)
	assert.Equal(t, JoinFailFast, cfg.Join)

	cfg.Merge(&Config{})
	assert.Equal(t, JoinFailFast, cfg.Join, "zero fields do not override")

	cfg.Merge(&Config{Join: JoinAllSettled})
	assert.Equal(t, JoinAllSettled, cfg.Join)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		join    JoinMode
		wantErr bool
	}{
		{"fail fast", JoinFailFast, false},
		{"all settled", JoinAllSettled, false},
		{"empty", "", true},
		{"unknown", "eventually", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Join: tt.join}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_YAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("join: all_settled\n"), &cfg))
	assert.Equal(t, JoinAllSettled, cfg.Join)
}

func TestQueue_ConfigApplied(t *testing.T) {
	q, err := New[string](nil, WithConfig(Config{Join: JoinAllSettled}))
	require.NoError(t, err)
	defer q.Dispose()

	assert.Equal(t, JoinAllSettled, q.Config().Join)
}
