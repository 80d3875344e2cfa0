// Package guard forces LEDGER_TEST_MODE for test binaries that import it, so
// command entrypoints never dial real infrastructure under go test.
package guard

import (
	"os"
	"sync"
)

// Env is the variable consulted by app.InTestMode.
const Env = "LEDGER_TEST_MODE"

var once sync.Once

func init() {
	Enable()
}

// Enable sets the test mode flag unless the caller already chose a value.
func Enable() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
