package scheduler

import (
	"log"
	"os"
)

// debugEnabled gates verbose scheduler logging via CASCADE_DEBUG.
var debugEnabled = os.Getenv("CASCADE_DEBUG") != ""

// debugLog writes a debug message when CASCADE_DEBUG is set.
func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf(format, args...)
	}
}
