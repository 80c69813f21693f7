// Package viewer holds the single piece of mutable viewer state, the
// active citation, and the per-document-kind highlight renderers that
// consume it. All transitions flow through the Controller; renderers and
// field rows are pure readers.
package viewer

import (
	"sync"
	"time"

	"github.com/pdewitt/citelens/citation"
)

// State is the highlight lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFading
)

// Highlight dwell and fade defaults. A highlight stays fully visible for
// the dwell time, then fades out and clears.
const (
	DefaultDwell = 15 * time.Second
	DefaultFade  = 400 * time.Millisecond
)

// Display is the currently shown source and page.
type Display struct {
	SourceID string
	Page     int
}

// Snapshot is a consistent read of the controller state. Citation is nil
// unless State is Active or Fading.
type Snapshot struct {
	State      State
	Citation   *citation.Active
	Display    Display
	Generation uint64
}

// Config tunes the highlight timing; zero values take the defaults.
type Config struct {
	Dwell time.Duration
	Fade  time.Duration
}

// Controller owns the active citation and the displayed source/page.
// Every fade timer is keyed to the activation generation that created it,
// so a superseding activation or a clear deterministically invalidates
// pending fades.
type Controller struct {
	mu        sync.Mutex
	dwell     time.Duration
	fade      time.Duration
	gen       uint64
	state     State
	active    *citation.Active
	display   Display
	timer     *time.Timer
	pageCount map[string]int
	listeners []func(Snapshot)
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	if cfg.Fade <= 0 {
		cfg.Fade = DefaultFade
	}
	return &Controller{
		dwell:     cfg.Dwell,
		fade:      cfg.Fade,
		pageCount: make(map[string]int),
	}
}

// SetSources registers the extraction run's sources so page navigation
// can be clamped to each document's page count.
func (c *Controller) SetSources(sources []citation.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range sources {
		c.pageCount[s.ID] = s.PageCount
	}
}

// Subscribe registers a listener invoked after every transition. The
// listener must not call back into the controller.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Click activates the citation. If the citation belongs to a source other
// than the one displayed, the display switches first and its position
// resets, so consumers never observe the highlight before the correct
// source and page are in place.
func (c *Controller) Click(cit citation.Citation) {
	key := citation.ActiveKey(cit)

	c.mu.Lock()
	var events []Snapshot

	if c.display.SourceID != cit.SourceID {
		c.cancelTimerLocked()
		c.state = StateIdle
		c.active = nil
		c.display = Display{SourceID: cit.SourceID, Page: 1}
		events = append(events, c.snapshotLocked())
	}
	if key.PDF != nil {
		c.display.Page = c.clampPageLocked(cit.SourceID, key.PDF.Page)
	}

	c.cancelTimerLocked()
	c.gen++
	c.state = StateActive
	c.active = &key

	gen := c.gen
	c.timer = time.AfterFunc(c.dwell, func() { c.dwellExpired(gen) })

	events = append(events, c.snapshotLocked())
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, events)
}

// Navigate records a manual page or source change. Manual navigation
// always clears the active citation so a stale highlight never persists
// on an unrelated page.
func (c *Controller) Navigate(sourceID string, page int) {
	c.mu.Lock()
	c.cancelTimerLocked()
	c.gen++
	c.state = StateIdle
	c.active = nil
	c.display = Display{SourceID: sourceID, Page: c.clampPageLocked(sourceID, page)}
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, []Snapshot{snap})
}

// Clear drops the active citation without changing the display.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.cancelTimerLocked()
	c.gen++
	c.state = StateIdle
	c.active = nil
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, []Snapshot{snap})
}

// Snapshot returns a consistent view of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// IsActive reports whether any of the citation equals the active one,
// via the citation matching rules. Field rows use this to decide their
// highlighted visual state.
func (c *Controller) IsActive(cit citation.Citation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.active == nil {
		return false
	}
	return citation.Matches(cit, *c.active)
}

// Close cancels any outstanding fade timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.gen++
}

func (c *Controller) dwellExpired(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.state = StateFading
	c.timer = time.AfterFunc(c.fade, func() { c.fadeDone(gen) })
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, []Snapshot{snap})
}

func (c *Controller) fadeDone(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateFading {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.active = nil
	c.timer = nil
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, []Snapshot{snap})
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) clampPageLocked(sourceID string, page int) int {
	if page < 1 {
		page = 1
	}
	if count, ok := c.pageCount[sourceID]; ok && count > 0 && page > count {
		page = count
	}
	return page
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state, Display: c.display, Generation: c.gen}
	if c.active != nil {
		a := *c.active
		snap.Citation = &a
	}
	return snap
}

func notify(listeners []func(Snapshot), events []Snapshot) {
	for _, snap := range events {
		for _, fn := range listeners {
			fn(snap)
		}
	}
}
