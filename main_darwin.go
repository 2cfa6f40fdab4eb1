package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The macOS hotkey needs the main thread's event loop, so the app runs
// beside it.
func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
