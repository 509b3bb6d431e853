package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/logging"
)

// Start configures the quiet test logging profile and returns a logger for
// injection into the code under test.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	return logging.ConfigureTests()
}
