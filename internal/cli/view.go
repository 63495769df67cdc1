package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// TerminalView shows dashboard dialogs on the terminal. Alerts go to out,
// diagnostics to errOut, and a reload re-lists the sites.
type TerminalView struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	reload func(ctx context.Context)
}

func NewTerminalView(out, errOut io.Writer) *TerminalView {
	return &TerminalView{out: out, errOut: errOut}
}

// OnReload sets what Reload runs.
func (v *TerminalView) OnReload(fn func(ctx context.Context)) {
	v.mu.Lock()
	v.reload = fn
	v.mu.Unlock()
}

func (v *TerminalView) Alert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, msg)
}

func (v *TerminalView) Diagnostic(msg string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		fmt.Fprintln(v.errOut, msg)
		return
	}
	fmt.Fprintf(v.errOut, "%s: %v\n", msg, err)
}

func (v *TerminalView) Reload(ctx context.Context) {
	v.mu.Lock()
	fn := v.reload
	v.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}
