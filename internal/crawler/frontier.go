package crawler

import "github.com/nao1215/sitediff/internal/model"

// frontier is a FIFO queue of crawl targets.
// Popped entries are released by compacting once the dead prefix dominates.
type frontier struct {
	items []model.CrawlTarget
	head  int
}

func newFrontier() *frontier {
	return &frontier{}
}

// push appends t to the back of the queue.
func (f *frontier) push(t model.CrawlTarget) {
	f.items = append(f.items, t)
}

// pop removes and returns the front of the queue.
func (f *frontier) pop() (model.CrawlTarget, bool) {
	if f.head >= len(f.items) {
		return model.CrawlTarget{}, false
	}
	t := f.items[f.head]
	f.items[f.head] = model.CrawlTarget{}
	f.head++

	if f.head > 64 && f.head*2 > len(f.items) {
		n := copy(f.items, f.items[f.head:])
		f.items = f.items[:n]
		f.head = 0
	}
	return t, true
}

// len returns the number of pending targets.
func (f *frontier) len() int {
	return len(f.items) - f.head
}

// visitedSet is an exact set of normalized URLs.
type visitedSet map[string]struct{}

func newVisitedSet() visitedSet {
	return make(visitedSet)
}

func (v visitedSet) add(u string) {
	v[u] = struct{}{}
}

func (v visitedSet) has(u string) bool {
	_, ok := v[u]
	return ok
}
