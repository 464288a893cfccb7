package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes commands return before dialing postgres, redis or SMTP.
const TestModeEnv = "BILLTRACK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return parseFlag(os.Getenv(TestModeEnv))
})

// InTestMode reports whether the application should skip runtime side effects.
// The environment is read once per process.
func InTestMode() bool {
	return testMode()
}

func parseFlag(raw string) bool {
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
