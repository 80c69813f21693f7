package viewer

import (
	"sync"
	"testing"
	"time"

	"github.com/pdewitt/citelens/citation"
)

func pdfCitation(sourceID string, page int) citation.Citation {
	return citation.NewPDF(sourceID, page, citation.BBox{Left: 0.1, Top: 0.2, Width: 0.4, Height: 0.02})
}

// recorder collects snapshots emitted by the controller.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func TestClickActivates(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()

	cit := pdfCitation("doc-1", 3)
	c.Click(cit)

	snap := c.Snapshot()
	if snap.State != StateActive {
		t.Fatalf("State = %v, want Active", snap.State)
	}
	if snap.Display.SourceID != "doc-1" || snap.Display.Page != 3 {
		t.Errorf("Display = %+v", snap.Display)
	}
	if !c.IsActive(cit) {
		t.Error("clicked citation should report active")
	}
	if c.IsActive(pdfCitation("doc-1", 4)) {
		t.Error("a different citation should not report active")
	}
}

func TestClickSwitchesSourceBeforeActivating(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()
	rec := &recorder{}
	c.Subscribe(rec.record)

	c.Navigate("doc-B", 2)
	c.Click(pdfCitation("doc-A", 5))

	snaps := rec.all()
	// Walk the emitted snapshots: every snapshot with an active highlight
	// must already display the citation's source and page.
	sawActive := false
	for _, s := range snaps {
		if s.State == StateActive {
			sawActive = true
			if s.Display.SourceID != "doc-A" || s.Display.Page != 5 {
				t.Errorf("highlight observed with display %+v", s.Display)
			}
		}
	}
	if !sawActive {
		t.Fatal("no active snapshot emitted")
	}

	// The source switch itself is observable before the activation.
	var switchIdx, activeIdx = -1, -1
	for i, s := range snaps {
		if s.Display.SourceID == "doc-A" && s.State == StateIdle && switchIdx == -1 {
			switchIdx = i
		}
		if s.State == StateActive && activeIdx == -1 {
			activeIdx = i
		}
	}
	if switchIdx == -1 || activeIdx == -1 || switchIdx >= activeIdx {
		t.Errorf("source switch (idx %d) must precede activation (idx %d)", switchIdx, activeIdx)
	}
}

func TestManualNavigationClears(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()

	cit := pdfCitation("doc-1", 3)
	c.Click(cit)
	c.Navigate("doc-1", 4)

	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Citation != nil {
		t.Errorf("manual navigation should clear the highlight, got %+v", snap)
	}
	if c.IsActive(cit) {
		t.Error("citation still reports active after navigation")
	}
}

func TestSourceSwitchClears(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()

	c.Click(pdfCitation("doc-1", 3))
	c.Navigate("doc-2", 1)

	if snap := c.Snapshot(); snap.State != StateIdle {
		t.Errorf("unrelated source switch should clear, got state %v", snap.State)
	}
}

func TestPageClamping(t *testing.T) {
	c := NewController(Config{})
	defer c.Close()
	c.SetSources([]citation.Source{{ID: "doc-1", PageCount: 6}})

	c.Navigate("doc-1", 99)
	if snap := c.Snapshot(); snap.Display.Page != 6 {
		t.Errorf("page = %d, want clamped to 6", snap.Display.Page)
	}

	c.Navigate("doc-1", -3)
	if snap := c.Snapshot(); snap.Display.Page != 1 {
		t.Errorf("page = %d, want clamped to 1", snap.Display.Page)
	}
}

func TestFadeLifecycle(t *testing.T) {
	c := NewController(Config{Dwell: 30 * time.Millisecond, Fade: 20 * time.Millisecond})
	defer c.Close()
	rec := &recorder{}
	c.Subscribe(rec.record)

	c.Click(pdfCitation("doc-1", 1))

	deadline := time.After(2 * time.Second)
	for {
		if snap := c.Snapshot(); snap.State == StateIdle && snap.Citation == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("highlight never cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}

	var sawFading bool
	for _, s := range rec.all() {
		if s.State == StateFading {
			sawFading = true
			if s.Citation == nil {
				t.Error("fading snapshot lost its citation")
			}
		}
	}
	if !sawFading {
		t.Error("highlight cleared without passing through the fading state")
	}
}

func TestNewActivationCancelsPendingFade(t *testing.T) {
	c := NewController(Config{Dwell: 25 * time.Millisecond, Fade: 20 * time.Millisecond})
	defer c.Close()

	first := pdfCitation("doc-1", 1)
	second := pdfCitation("doc-1", 2)

	c.Click(first)
	time.Sleep(35 * time.Millisecond) // first activation is fading now
	c.Click(second)

	// The second activation restarted the dwell; the first activation's
	// fade timer must not clear it.
	time.Sleep(15 * time.Millisecond)
	snap := c.Snapshot()
	if snap.State != StateActive {
		t.Fatalf("state = %v, want Active (ghost fade fired?)", snap.State)
	}
	if !c.IsActive(second) {
		t.Error("second citation should be the active one")
	}
}

func TestClearStopsTimers(t *testing.T) {
	c := NewController(Config{Dwell: 20 * time.Millisecond, Fade: 10 * time.Millisecond})
	defer c.Close()
	rec := &recorder{}

	c.Click(pdfCitation("doc-1", 1))
	c.Clear()
	c.Subscribe(rec.record)

	time.Sleep(50 * time.Millisecond)
	if snaps := rec.all(); len(snaps) != 0 {
		t.Errorf("cleared activation still emitted %d events", len(snaps))
	}
	if snap := c.Snapshot(); snap.State != StateIdle {
		t.Errorf("state = %v, want Idle", snap.State)
	}
}
