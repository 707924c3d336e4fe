package sim

import (
	"io"
	"log"
)

// LogHookBase provides the common logic for hooks that log what they see.
type LogHookBase struct {
	*log.Logger
}

// NewLogHookBase creates a LogHookBase that writes to w. Every line carries
// the given prefix.
func NewLogHookBase(w io.Writer, prefix string) LogHookBase {
	return LogHookBase{
		Logger: log.New(w, prefix, 0),
	}
}
