package procureagent

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

// Dump prints v to stdout prefixed with the caller's location.
func Dump(v ...any) {
	_, file, line, _ := runtime.Caller(1)
	args := append([]any{fmt.Sprintf("%s:%d:", file, line)}, v...)
	dumpConfig.Dump(args...)
}

// Fdump is Dump to an arbitrary writer, without the caller prefix.
func Fdump(w io.Writer, v ...any) {
	dumpConfig.Fdump(w, v...)
}
