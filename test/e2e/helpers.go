//go:build e2e

package e2e

import (
	"os"
	"testing"
)

// runOnAllConfigs runs testFunc against a fresh mount for every store
// configuration. Hosts without FUSE skip.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available on this host")
	}

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}
