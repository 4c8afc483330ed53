// Package display implements surfaces for detection text.
package display

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ayusman/mudra/internal/gesture"
)

// Console prints detection text to a terminal.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	show  *color.Color
	clear *color.Color
	text  string
}

// NewConsole creates a Console writing to out, or stdout when out is nil.
// Colors follow the terminal's support as detected by the color package.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		out:   out,
		show:  color.New(color.FgGreen, color.Bold),
		clear: color.New(color.Faint),
	}
}

// Show prints text. Repeated calls with the text already on screen print
// nothing.
func (c *Console) Show(text string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == c.text {
		return
	}
	c.text = text

	if d > 0 {
		c.show.Fprintf(c.out, "%s (%s)\n", text, d)
		return
	}
	c.show.Fprintln(c.out, text)
}

// Clear marks the current text as gone.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.text == "" {
		return
	}
	c.clear.Fprintf(c.out, "- %s\n", c.text)
	c.text = ""
}

// Latest remembers the text currently shown. It is safe for concurrent use.
type Latest struct {
	mu    sync.RWMutex
	text  string
	until time.Time
	now   func() time.Time
}

// NewLatest creates an empty Latest.
func NewLatest() *Latest {
	return &Latest{now: time.Now}
}

func (l *Latest) Show(text string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text = text
	l.until = time.Time{}
	if d > 0 {
		l.until = l.now().Add(d)
	}
}

func (l *Latest) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text = ""
	l.until = time.Time{}
}

// Text returns the shown text and when it expires. A zero time means the
// text stays until cleared.
func (l *Latest) Text() (string, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text, l.until
}

// Multi forwards to several displays in order.
type Multi []gesture.Display

func (m Multi) Show(text string, d time.Duration) {
	for _, disp := range m {
		disp.Show(text, d)
	}
}

func (m Multi) Clear() {
	for _, disp := range m {
		disp.Clear()
	}
}
