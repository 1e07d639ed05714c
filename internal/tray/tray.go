// Package tray provides a system tray interface for the signbridge translator.
package tray

import (
	"sync"
	"unicode/utf8"

	"github.com/getlantern/systray"

	"github.com/ayusman/signbridge/internal/sign"
)

// maxTextLen bounds the last-translation menu title.
const maxTextLen = 40

// Tray represents the system tray application.
type Tray struct {
	onDirection func()
	onVariant   func()
	onOpen      func()
	onQuit      func()
	direction   sign.Direction
	variant     sign.Variant
	lastText    string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuDirection *systray.MenuItem
	menuVariant   *systray.MenuItem
	menuLastText  *systray.MenuItem
}

// New creates a new Tray showing the given mode.
func New(direction sign.Direction, variant sign.Variant) *Tray {
	return &Tray{
		direction: direction,
		variant:   variant,
	}
}

// OnToggleDirection sets the callback for the direction menu item.
func (t *Tray) OnToggleDirection(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDirection = fn
}

// OnToggleVariant sets the callback for the variant menu item.
func (t *Tray) OnToggleVariant(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onVariant = fn
}

// OnOpen sets the callback for the open menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop started by Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("SignBridge")
	systray.SetTooltip("SignBridge sign language translator")

	t.mu.Lock()
	t.menuDirection = systray.AddMenuItem(directionTitle(t.direction), "Switch translation direction")
	t.menuVariant = systray.AddMenuItem(variantTitle(t.variant), "Switch sign language")
	systray.AddSeparator()

	t.menuLastText = systray.AddMenuItem(lastTitle(t.lastText), "Last translation")
	t.menuLastText.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Translator...", "Open the translator in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit SignBridge")

	go func() {
		for {
			select {
			case <-t.menuDirection.ClickedCh:
				t.invoke(func() func() { return t.onDirection })
			case <-t.menuVariant.ClickedCh:
				t.invoke(func() func() { return t.onVariant })
			case <-menuOpen.ClickedCh:
				t.invoke(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// invoke calls the callback chosen by get outside the lock.
func (t *Tray) invoke(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.invoke(func() func() { return t.onQuit })
	systray.Quit()
}

// SetMode updates the direction and variant menu items.
func (t *Tray) SetMode(direction sign.Direction, variant sign.Variant) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.direction, t.variant = direction, variant
	if t.menuDirection != nil {
		t.menuDirection.SetTitle(directionTitle(direction))
	}
	if t.menuVariant != nil {
		t.menuVariant.SetTitle(variantTitle(variant))
	}
}

// SetLastText updates the last translation display in the menu.
func (t *Tray) SetLastText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastText = text
	if t.menuLastText != nil {
		t.menuLastText.SetTitle(lastTitle(text))
	}
}

// Mode returns the mode currently shown.
func (t *Tray) Mode() (sign.Direction, sign.Variant) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.direction, t.variant
}

func directionTitle(d sign.Direction) string {
	if d == sign.SignToText {
		return "Mode: Sign → Text"
	}
	return "Mode: Text → Sign"
}

func variantTitle(v sign.Variant) string {
	return "Language: " + v.DisplayName()
}

func lastTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		runes := []rune(text)
		text = string(runes[:maxTextLen-1]) + "…"
	}
	return "Last: " + text
}
