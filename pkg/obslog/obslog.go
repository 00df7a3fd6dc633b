// Package obslog provides the component-prefixed loggers used throughout the
// service, following the teacher's log.Logger-with-bracketed-prefix idiom.
package obslog

import (
	"log"
	"os"
)

// New returns a logger prefixed with the given component name, e.g.
// New("pdsync") logs lines beginning with "[pdsync] ".
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
}
