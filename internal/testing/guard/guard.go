// Package guard puts commands into test mode when imported from their tests,
// so startup code never dials postgres, redis or SMTP.
package guard

import "os"

// EnvVar is the switch read by app.InTestMode.
const EnvVar = "BILLTRACK_TEST_MODE"

func init() {
	if os.Getenv(EnvVar) == "" {
		_ = os.Setenv(EnvVar, "1")
	}
}
