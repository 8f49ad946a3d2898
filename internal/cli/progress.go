package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// parseProgressReporter draws a one-line spinner on stderr while a scan
// reads files. It is a no-op unless stderr is a terminal and output is not
// JSON.
type parseProgressReporter struct {
	enabled bool
	label   string
	start   time.Time

	mu      sync.Mutex
	spinner int
	lastLen int
	drawn   bool
}

func newParseProgressReporter(label string, asJSON bool) *parseProgressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &parseProgressReporter{
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

// Update matches engine.Options.Progress.
func (r *parseProgressReporter) Update(count, total int, file string) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	file = strings.TrimSpace(file)
	if len(file) > 88 {
		file = "..." + file[len(file)-85:]
	}

	status := fmt.Sprintf("%s %s %d reading %s", frame, r.label, count, file)
	if total > 0 {
		status = fmt.Sprintf("%s %s %d/%d reading %s", frame, r.label, count, total, file)
	}
	r.printStatus(status)
}

func (r *parseProgressReporter) Done(count int) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.drawn {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	status := fmt.Sprintf("%s complete (%d files in %s)", r.label, count, elapsed)
	r.printStatus(status)
	fmt.Fprintln(os.Stderr)
}

func (r *parseProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	r.drawn = true
	fmt.Fprintf(os.Stderr, "\r%s", status)
}
