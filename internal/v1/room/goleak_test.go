package room

import (
	"testing"

	"go.uber.org/goleak"
)

// Grace timers, the supervisor ticker, and bridge subscriptions all spawn
// goroutines that must unwind when a room or manager is torn down; this
// guards against them outliving the test that started them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
