package observable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineComputesInitialValue(t *testing.T) {
	a, b := NewValue(1), NewValue(2)

	m := Combine([]Readable[int]{a, b}, func(v []int) int { return v[0] + v[1] })
	defer m.Dispose()

	assert.Equal(t, 3, m.Get())
}

func TestCombineRecomputesFromLatestOfEverySource(t *testing.T) {
	a, b, c := NewValue(1), NewValue(10), NewValue(100)

	var seen [][]int
	m := Combine([]Readable[int]{a, b, c}, func(v []int) int {
		seen = append(seen, append([]int(nil), v...))
		return v[0] + v[1] + v[2]
	})
	defer m.Dispose()

	var published []int
	m.OnChange(func(n int) { published = append(published, n) })

	b.Set(20)
	a.Set(2)

	assert.Equal(t, []int{121, 122}, published)
	assert.Equal(t, []int{2, 20, 100}, seen[len(seen)-1])
}

func TestCombinePublishesOnEverySourceChange(t *testing.T) {
	a := NewValue(1)
	m := Combine([]Readable[int]{a}, func(v []int) bool { return v[0] > 0 })
	defer m.Dispose()

	calls := 0
	m.OnChange(func(bool) { calls++ })

	a.Set(2)
	a.Set(3)
	assert.Equal(t, 2, calls)
	assert.True(t, m.Get())
}

func TestDeriveHeterogeneousSources(t *testing.T) {
	name := NewValue("runner")
	count := NewValue(2)

	m := Derive(func() string {
		return fmt.Sprintf("%s x%d", name.Get(), count.Get())
	}, name, count)
	defer m.Dispose()

	assert.Equal(t, "runner x2", m.Get())
	count.Set(3)
	assert.Equal(t, "runner x3", m.Get())
	name.Set("job")
	assert.Equal(t, "job x3", m.Get())
}

func TestMemoDisposeDetachesFromSources(t *testing.T) {
	a, b := NewValue(1), NewValue(2)

	m := Combine([]Readable[int]{a, b}, func(v []int) int { return v[0] * v[1] })
	assert.Equal(t, 1, a.Subscribers())
	assert.Equal(t, 1, b.Subscribers())

	m.Dispose()
	assert.Equal(t, 0, a.Subscribers())
	assert.Equal(t, 0, b.Subscribers())

	a.Set(5)
	assert.Equal(t, 2, m.Get(), "disposed memo keeps its last value")
}

func TestMemoChainsIntoMemo(t *testing.T) {
	a := NewValue(1)
	double := Combine([]Readable[int]{a}, func(v []int) int { return v[0] * 2 })
	defer double.Dispose()
	quad := Combine([]Readable[int]{double}, func(v []int) int { return v[0] * 2 })
	defer quad.Dispose()

	a.Set(3)
	assert.Equal(t, 12, quad.Get())
}
