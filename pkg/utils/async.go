package utils

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"
)

const maxGoroutineRestarts = 10

// EnsureRunGoroutine runs f on a goroutine and restarts it after a panic.
// After too many restarts the process exits instead of looping forever.
func EnsureRunGoroutine(f func(), tryCount ...int) {
	try := 0
	if len(tryCount) > 0 {
		try = tryCount[0]
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "panic: %v\n%s", r, debug.Stack())
				time.Sleep(time.Second)
				if try > maxGoroutineRestarts {
					os.Exit(1)
				}
				EnsureRunGoroutine(f, try+1)
			}
		}()

		f()
	}()
}
