package observable

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSetNotifiesSynchronously(t *testing.T) {
	v := NewValue(1)

	var got []int
	v.OnChange(func(n int) { got = append(got, n) })

	v.Set(2)
	v.Set(3)

	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, 3, v.Get())
}

func TestValueSetEqualValueStillNotifies(t *testing.T) {
	v := NewValue("a")

	calls := 0
	v.OnChange(func(string) { calls++ })

	v.Set("a")
	assert.Equal(t, 1, calls)
}

func TestValueOnTransitionCarriesPrevious(t *testing.T) {
	v := NewValue("initial")

	type pair struct{ prev, next string }
	var got []pair
	v.OnTransition(func(prev, next string) { got = append(got, pair{prev, next}) })

	v.Set("pending")
	v.Set("success")

	assert.Equal(t, []pair{{"initial", "pending"}, {"pending", "success"}}, got)
}

func TestValueUnsubscribe(t *testing.T) {
	v := NewValue(0)

	calls := 0
	sub := v.OnChange(func(int) { calls++ })
	v.Set(1)
	sub.Unsubscribe()
	sub.Unsubscribe()
	v.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, v.Subscribers())
}

func TestValueNotifiesInSubscriptionOrder(t *testing.T) {
	v := NewValue(0)

	var order []string
	v.OnChange(func(int) { order = append(order, "first") })
	v.OnChange(func(int) { order = append(order, "second") })
	v.OnChange(func(int) { order = append(order, "third") })

	v.Set(1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestValueListenerAddedDuringNotificationMissesIt(t *testing.T) {
	v := NewValue(0)

	late := 0
	added := false
	v.OnChange(func(int) {
		if !added {
			added = true
			v.OnChange(func(int) { late++ })
		}
	})

	v.Set(1)
	assert.Equal(t, 0, late)

	v.Set(2)
	assert.Equal(t, 1, late)
}

func TestValueListenerMayWriteReentrantly(t *testing.T) {
	v := NewValue(0)

	v.OnChange(func(n int) {
		if n < 3 {
			v.Set(n + 1)
		}
	})

	v.Set(1)
	assert.Equal(t, 3, v.Get())
}

func TestValueErrorChannelIsOrthogonal(t *testing.T) {
	v := NewValue(10)
	boom := errors.New("boom")

	var gotErr error
	valueCalls := 0
	v.OnError(func(err error) { gotErr = err })
	v.OnChange(func(int) { valueCalls++ })

	v.SetError(boom)
	assert.Equal(t, boom, gotErr)
	assert.Equal(t, 0, valueCalls)
	assert.Equal(t, 10, v.Get())

	v.Set(11)
	assert.Equal(t, boom, v.Err(), "setting a value must not clear the error")

	v.SetError(nil)
	assert.NoError(t, v.Err())
	assert.Nil(t, gotErr)
	assert.Equal(t, 11, v.Get())
}

func TestValueUpdateIsAtomic(t *testing.T) {
	v := NewValue(0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				v.Update(func(n int) int { return n + 1 })
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5000, v.Get())
}

func TestValueDispose(t *testing.T) {
	v := NewValue(1)

	calls := 0
	v.OnChange(func(int) { calls++ })
	v.OnError(func(error) { calls++ })

	v.Dispose()
	v.Dispose()
	require.True(t, v.Disposed())
	assert.Equal(t, 0, v.Subscribers())

	v.Set(2)
	v.SetError(errors.New("ignored"))
	assert.Equal(t, 1, v.Get(), "writes after dispose are ignored")
	assert.NoError(t, v.Err())
	assert.Equal(t, 0, calls)

	sub := v.OnChange(func(int) { calls++ })
	require.NotNil(t, sub)
	sub.Unsubscribe()
	assert.Equal(t, 0, v.Subscribers())
}

func TestSubscriptionNilSafe(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}
