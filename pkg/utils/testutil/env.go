// Package testutil gates tests that need live cloud resources.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// GetEnvOrSkip returns the value of the environment variable. If not set, skip the test.
func GetEnvOrSkip(t *testing.T, key string) string {
	t.Helper()
	return GetEnvsOrSkip(t, key)[0]
}

// GetEnvsOrSkip returns the values of keys in order, or skips the test naming
// every variable that is not set.
func GetEnvsOrSkip(t *testing.T, keys ...string) []string {
	t.Helper()
	values := make([]string, len(keys))
	var missing []string
	for i, key := range keys {
		values[i] = os.Getenv(key)
		if values[i] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		t.Skipf("%s not set, skipping test", strings.Join(missing, ", "))
	}
	return values
}
