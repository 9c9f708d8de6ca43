package crawler

import mapset "github.com/deckarep/golang-set/v2"

// frontier is the FIFO queue of same-origin pages awaiting a visit.
// A URL enters the queue at most once per scan.
type frontier struct {
	queue   []string
	known   mapset.Set[string]
	visited mapset.Set[string]
}

func newFrontier(start string) *frontier {
	f := &frontier{
		queue:   make([]string, 0),
		known:   mapset.NewThreadUnsafeSet[string](),
		visited: mapset.NewThreadUnsafeSet[string](),
	}
	f.push(start)
	return f
}

// push appends u unless it was queued or visited before.
func (f *frontier) push(u string) bool {
	if !f.known.Add(u) {
		return false
	}
	f.queue = append(f.queue, u)
	return true
}

// pop removes the oldest queued URL.
func (f *frontier) pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

// markVisited records u as visited and reports whether it was new.
func (f *frontier) markVisited(u string) bool {
	f.known.Add(u)
	return f.visited.Add(u)
}

func (f *frontier) isVisited(u string) bool {
	return f.visited.Contains(u)
}

func (f *frontier) empty() bool {
	return len(f.queue) == 0
}

// linkRegistry remembers every absolute link already checked in a scan.
type linkRegistry struct {
	seen mapset.Set[string]
}

func newLinkRegistry() *linkRegistry {
	return &linkRegistry{seen: mapset.NewThreadUnsafeSet[string]()}
}

// firstSighting records link and reports whether it had not been seen yet.
func (r *linkRegistry) firstSighting(link string) bool {
	return r.seen.Add(link)
}
