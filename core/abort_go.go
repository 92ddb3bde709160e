//go:build !tinygo

package core

import (
	"os"
	"runtime"
)

// ExitCodeHalted is the process exit status used by the default halt
const ExitCodeHalted = 70

func platformHalt() {
	os.Exit(ExitCodeHalted)
}

// callerLine returns the file and line skip frames above callerLine, using
// pcs as scratch. FuncForPC only allocates when that frame was inlined.
func callerLine(skip int, pcs []uintptr) (string, int) {
	if runtime.Callers(skip+1, pcs) == 0 {
		return "", 0
	}
	pc := pcs[0] - 1
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", 0
	}
	return fn.FileLine(pc)
}
