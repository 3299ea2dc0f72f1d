package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffDoublesPerAttempt(t *testing.T) {
	job := &DelayedJob{BackoffBase: 2 * time.Second}

	job.Attempt = 0
	assert.Equal(t, 2*time.Second, job.NextBackoff())
	job.Attempt = 1
	assert.Equal(t, 4*time.Second, job.NextBackoff())
	job.Attempt = 2
	assert.Equal(t, 8*time.Second, job.NextBackoff())
}

func TestNextBackoffDefaultsBase(t *testing.T) {
	job := &DelayedJob{Attempt: 1}

	assert.Equal(t, 4*time.Second, job.NextBackoff())
}

func TestExhausted(t *testing.T) {
	job := &DelayedJob{MaxAttempts: 3}

	job.Attempt = 2
	assert.False(t, job.Exhausted())
	job.Attempt = 3
	assert.True(t, job.Exhausted())
}

func TestExhaustedDefaultsMaxAttempts(t *testing.T) {
	job := &DelayedJob{Attempt: 3}

	assert.True(t, job.Exhausted())
}
