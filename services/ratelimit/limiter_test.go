package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/upb/site-control-plane/models"
)

func TestAdmitUpToThreshold(t *testing.T) {
	limiter := New(2, time.Minute)
	counter := &models.RateCounter{}
	now := time.Now()

	first := limiter.Admit(counter, now)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second := limiter.Admit(counter, now)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third := limiter.Admit(counter, now)
	assert.False(t, third.Allowed)
	assert.Equal(t, 2, counter.Count, "rejected attempt must not increment")
}

func TestRejectionDoesNotExtendWindow(t *testing.T) {
	limiter := New(1, time.Minute)
	counter := &models.RateCounter{}
	start := time.Now()

	assert.True(t, limiter.Admit(counter, start).Allowed)
	assert.False(t, limiter.Admit(counter, start.Add(30*time.Second)).Allowed)

	// Window started at the first accepted attempt, not at the rejection.
	assert.True(t, limiter.Admit(counter, start.Add(time.Minute)).Allowed)
}

func TestWindowReset(t *testing.T) {
	limiter := New(2, time.Minute)
	counter := &models.RateCounter{}
	now := time.Now()

	limiter.Admit(counter, now)
	limiter.Admit(counter, now)
	assert.False(t, limiter.Admit(counter, now).Allowed)

	later := now.Add(time.Minute)
	result := limiter.Admit(counter, later)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, counter.Count)
	assert.Equal(t, later, counter.WindowStart)
}

func TestZeroThresholdDisablesLimiting(t *testing.T) {
	limiter := New(0, time.Minute)
	counter := &models.RateCounter{}
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Admit(counter, time.Now()).Allowed)
	}
}
