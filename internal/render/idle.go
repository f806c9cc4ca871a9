package render

import (
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// idleWaiter waits for the networkIdle lifecycle event of the document a
// navigation committed in the main frame. Events of iframes and of earlier
// documents are ignored. A later main-frame init (a script redirect)
// replaces the awaited document.
type idleWaiter struct {
	mu      sync.Mutex
	frame   cdp.FrameID
	loaders map[cdp.FrameID]cdp.LoaderID // loader of the last init per frame
	idle    map[cdp.FrameID]cdp.LoaderID // loader of the last networkIdle per frame
	done    chan struct{}
	fired   bool
}

func newIdleWaiter() *idleWaiter {
	return &idleWaiter{
		loaders: make(map[cdp.FrameID]cdp.LoaderID),
		idle:    make(map[cdp.FrameID]cdp.LoaderID),
		done:    make(chan struct{}),
	}
}

// observe records a lifecycle event.
func (w *idleWaiter) observe(e *page.EventLifecycleEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e.Name {
	case "init":
		w.loaders[e.FrameID] = e.LoaderID
		delete(w.idle, e.FrameID)
	case "networkIdle":
		w.idle[e.FrameID] = e.LoaderID
	default:
		return
	}
	w.check()
}

// navigated sets the main frame and the loader returned by Page.navigate.
// An empty loader is a same-document navigation, which fires no lifecycle
// events and counts as idle at once.
func (w *idleWaiter) navigated(frame cdp.FrameID, loader cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.frame = frame
	if loader == "" {
		w.fire()
		return
	}
	if _, ok := w.loaders[frame]; !ok {
		w.loaders[frame] = loader
	}
	w.check()
}

// check fires when the main frame's current document is idle.
// Callers hold mu.
func (w *idleWaiter) check() {
	if w.frame == "" {
		return
	}
	loader, ok := w.loaders[w.frame]
	if ok && w.idle[w.frame] == loader {
		w.fire()
	}
}

func (w *idleWaiter) fire() {
	if !w.fired {
		w.fired = true
		close(w.done)
	}
}

// Done is closed once the page is idle.
func (w *idleWaiter) Done() <-chan struct{} {
	return w.done
}
