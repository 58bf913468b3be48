package testflags

import (
	"flag"
	"testing"
)

// Unit tests run by default; integration tests touch the disk (badger) and can be turned off.
var integrationTest = flag.Bool("integration", true, "Run the integration go tests")
var unitTest = flag.Bool("unit", true, "Run the unit go tests")

// UnitTest runs the calling test in parallel if the `-unit` or `-short` flag is set,
// otherwise the test is skipped.
func UnitTest(t *testing.T) {
	if !*unitTest && !testing.Short() {
		t.SkipNow()
	}
	t.Parallel()
}

// IntegrationTest runs the calling test in parallel if the `-integration` flag is set.
// Integration tests are skipped in short mode.
func IntegrationTest(t *testing.T) {
	if !*integrationTest || testing.Short() {
		t.SkipNow()
	}
	t.Parallel()
}

// BadUnitTestWithSideEffects runs the calling test serially. Used by tests that register
// process wide state such as metric views or log levels.
func BadUnitTestWithSideEffects(t *testing.T) {
	if !*unitTest && !testing.Short() {
		t.SkipNow()
	}
}
