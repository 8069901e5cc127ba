package util

import (
	"runtime/debug"

	"github.com/iphunt/iphunt/internal/logging"
)

// SafeGo runs fn on a new goroutine with panic recovery. A panic is logged
// with its stack trace instead of crashing the process.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("goroutine panic recovered",
					"goroutine", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
