// Package tray provides a system tray menu for toggling recognition and
// watching detections.
package tray

import (
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/gesture"
)

const title = "Mudra"

// Tray is the system tray menu. It is also a gesture.Display: shown text
// replaces the tray title until cleared.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	last       string
	text       string
	ready      bool
	mu         sync.RWMutex

	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
	sub             *gesture.Subscription
}

// New creates a Tray with recognition enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle sets the callback run when recognition is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback run when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Attach shows every new detection in the "Last" menu item.
func (t *Tray) Attach(bus *gesture.Bus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub != nil {
		t.sub.Cancel()
	}
	t.sub = bus.Subscribe(func(e gesture.Event) {
		if !e.Repeat {
			t.SetLastGesture(e.Gesture)
		}
	})
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(title)
	systray.SetTooltip("Mudra hand gesture recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture recognition")
	systray.AddSeparator()
	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last detected gesture")
	t.menuLastGesture.Disable()
	t.ready = true
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open the status page in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = false
	if t.sub != nil {
		t.sub.Cancel()
		t.sub = nil
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.ready {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Outside the lock: the callback may call back into the tray.
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetEnabled syncs the toggle item with a state changed elsewhere.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.ready {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastGesture updates the last gesture item.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = name
	if t.ready {
		t.menuLastGesture.SetTitle(lastTitle(name))
	}
}

// Show puts text in the tray title.
func (t *Tray) Show(text string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
	if t.ready {
		systray.SetTitle(title + " · " + text)
	}
}

// Clear restores the plain tray title.
func (t *Tray) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = ""
	if t.ready {
		systray.SetTitle(title)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastGesture returns the last gesture shown in the menu.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Text returns the text currently in the title, if any.
func (t *Tray) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
