package concurrency

import (
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn in a goroutine and turns a panic into a log line instead
// of a process crash. The name tags the log so the failing routine is
// identifiable.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic recovered in background routine",
					"routine", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
