package client

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if a batch fetch, name lookup or debounce
// timer outlives the test that started it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
