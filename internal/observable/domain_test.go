package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainValues(t *testing.T) {
	count := NewValue(2)
	label := NewDistinct("ready")

	d := NewDomain(map[string]Snapshotter{
		"count": count,
		"label": label,
	})

	assert.Equal(t, []string{"count", "label"}, d.Names())
	assert.Equal(t, map[string]any{"count": 2, "label": "ready"}, d.Values())

	count.Set(3)
	assert.Equal(t, 3, d.Values()["count"], "each call snapshots the current values")

	got, ok := d.Get("label")
	require.True(t, ok)
	assert.Equal(t, "ready", got.Snapshot())
}

func TestDomainDispose(t *testing.T) {
	a := NewValue(1)
	b := NewValue(2)
	a.OnChange(func(int) {})

	d := NewDomain(map[string]Snapshotter{"a": a, "b": b})
	d.Dispose()

	assert.True(t, a.Disposed())
	assert.True(t, b.Disposed())
	assert.Equal(t, 0, a.Subscribers())
}
