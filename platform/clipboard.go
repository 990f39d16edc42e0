package platform

import (
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard holds copied secrets for a limited time.
type Clipboard interface {
	// Set writes text and clears it again after ttl. A zero ttl never clears.
	Set(text string, ttl time.Duration) error
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct {
	write func(string) error
	read  func() (string, error)

	mu    sync.Mutex
	timer *time.Timer
}

func NewClipboard() *SystemClipboard {
	return &SystemClipboard{write: clipboard.WriteAll, read: clipboard.ReadAll}
}

// Available reports whether a clipboard utility was found.
func (c *SystemClipboard) Available() bool {
	return !clipboard.Unsupported
}

func (c *SystemClipboard) Set(text string, ttl time.Duration) error {
	if err := c.write(text); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if ttl > 0 {
		c.timer = time.AfterFunc(ttl, func() { c.clearIf(text) })
	}
	return nil
}

// clearIf empties the clipboard unless the user copied something else since.
func (c *SystemClipboard) clearIf(text string) {
	if cur, err := c.read(); err == nil && cur != text {
		return
	}
	c.write("")
}

// Clear empties the clipboard and cancels a pending timer.
func (c *SystemClipboard) Clear() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.write("")
}
