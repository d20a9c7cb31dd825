package debounce

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quiet = 60 * time.Millisecond

// recorder подменяет состояние формы и собирает пересланные запуски
type recorder struct {
	mu        sync.Mutex
	state     string
	forwarded []string
}

func (r *recorder) set(s string) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *recorder) capture() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.state
}

func (r *recorder) forward(s string) {
	r.mu.Lock()
	r.forwarded = append(r.forwarded, s)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.forwarded...)
}

func TestBurstForwardsOnceWithFinalState(t *testing.T) {
	rec := &recorder{}
	d := New(quiet, rec.capture, rec.forward, nil)
	defer d.Stop()

	for i := 0; i < 10; i++ {
		rec.set("x**" + strconv.Itoa(i))
		d.Signal()
		time.Sleep(quiet / 8)
	}

	assert.Empty(t, rec.got(), "nothing may fire inside the quiet window")

	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * quiet)
	assert.Equal(t, []string{"x**9"}, rec.got())
}

func TestUnchangedFingerprintIsSuppressed(t *testing.T) {
	rec := &recorder{state: "x"}
	suppressed := make(chan struct{}, 1)
	d := New(quiet, rec.capture, rec.forward, nil)
	d.OnSuppressed = func() { suppressed <- struct{}{} }
	defer d.Stop()

	d.Signal()
	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, 5*time.Millisecond)

	// фокус/расфокус без изменений
	d.Signal()
	select {
	case <-suppressed:
	case <-time.After(time.Second):
		t.Fatal("second trigger was not suppressed")
	}
	assert.Len(t, rec.got(), 1)

	rec.set("x+1")
	d.Signal()
	require.Eventually(t, func() bool { return len(rec.got()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"x", "x+1"}, rec.got())
}

func TestClearedStateStillFires(t *testing.T) {
	rec := &recorder{state: "x"}
	d := New(quiet, rec.capture, rec.forward, nil)
	defer d.Stop()

	d.Signal()
	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, 5*time.Millisecond)

	rec.set("")
	d.Signal()
	require.Eventually(t, func() bool { return len(rec.got()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", rec.got()[1])
}

func TestStopCancelsPendingTrigger(t *testing.T) {
	rec := &recorder{state: "x"}
	d := New(quiet, rec.capture, rec.forward, nil)

	d.Signal()
	assert.True(t, d.Pending())
	d.Stop()
	d.Signal()

	time.Sleep(3 * quiet)
	assert.Empty(t, rec.got())
	assert.False(t, d.Pending())
}

func TestFlushFiresImmediately(t *testing.T) {
	rec := &recorder{state: "x"}
	d := New(time.Hour, rec.capture, rec.forward, nil)
	defer d.Stop()

	d.Signal()
	d.Flush()
	assert.Equal(t, []string{"x"}, rec.got())
	assert.False(t, d.Pending())
}

func TestRememberSuppressesMatchingTrigger(t *testing.T) {
	rec := &recorder{state: "x"}
	d := New(time.Hour, rec.capture, rec.forward, nil)
	defer d.Stop()

	d.Remember("x")
	d.Signal()
	d.Flush()
	assert.Empty(t, rec.got())
}

func TestForgetAllowsSameStateAgain(t *testing.T) {
	rec := &recorder{state: "x"}
	d := New(time.Hour, rec.capture, rec.forward, nil)
	defer d.Stop()

	d.Signal()
	d.Flush()
	require.Equal(t, []string{"x"}, rec.got())

	d.Forget()
	d.Signal()
	d.Flush()
	assert.Equal(t, []string{"x", "x"}, rec.got())
}
