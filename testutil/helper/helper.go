// Package helper provides spies and arrangement helpers shared by the tests of all packages.
package helper

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GivenUniqueID returns a time-ordered unique id.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenUniquePrefix returns a key prefix that isolates one test's keys in a shared store.
func GivenUniquePrefix(t testing.TB, base string) string {
	return base + ":" + GivenUniqueID(t).String()[:8]
}

// EnvOrSkip returns the environment variable or skips the test when it is unset.
func EnvOrSkip(t testing.TB, name string) string {
	value := os.Getenv(name)
	if value == "" {
		t.Skipf("%s not set, skipping integration test", name)
	}

	return value
}

// Eventually polls condition until it holds or the timeout expires.
func Eventually(t testing.TB, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()

	require.Eventually(t, condition, timeout, 5*time.Millisecond, msg)
}

// ContextWithTimeout returns a context that is cancelled at test cleanup at the latest.
func ContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}
