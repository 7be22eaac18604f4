package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUsage_RemainingClampsAtZero(t *testing.T) {
	assert.Equal(t, int64(9), Usage{Calls: 1, Limit: 10}.Remaining())
	assert.Equal(t, int64(0), Usage{Calls: 10, Limit: 10}.Remaining())
	assert.Equal(t, int64(0), Usage{Calls: 11, Limit: 10}.Remaining())
}

func TestUsage_Allowed(t *testing.T) {
	assert.True(t, Usage{Calls: 10, Limit: 10}.Allowed())
	assert.False(t, Usage{Calls: 11, Limit: 10}.Allowed())
}

func TestWindowState_Expired(t *testing.T) {
	w := WindowState{Count: 3, ResetAt: 100}
	assert.False(t, w.Expired(99))
	assert.False(t, w.Expired(100))
	assert.True(t, w.Expired(101))
}

func TestTTL_ClampsToOneSecond(t *testing.T) {
	assert.Equal(t, 10*time.Second, TTL(110, 100))
	assert.Equal(t, time.Second, TTL(100, 100))
	assert.Equal(t, time.Second, TTL(95, 100))
}

func TestNextWindow_StartsFreshWindow(t *testing.T) {
	got := NextWindow(WindowState{}, false, 1000, 60)
	assert.Equal(t, WindowState{Count: 1, ResetAt: 1060}, got)
}

func TestNextWindow_ContinuesWithoutExtendingReset(t *testing.T) {
	got := NextWindow(WindowState{Count: 4, ResetAt: 1060}, true, 1059, 60)
	assert.Equal(t, WindowState{Count: 5, ResetAt: 1060}, got)
}

func TestNextWindow_ExpiredWindowRestartsAtOne(t *testing.T) {
	got := NextWindow(WindowState{Count: 500, ResetAt: 1060}, true, 1061, 60)
	assert.Equal(t, WindowState{Count: 1, ResetAt: 1121}, got)
}
