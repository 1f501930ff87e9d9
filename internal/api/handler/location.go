package handler

import (
	"net/url"
	"sync"
)

// requestLocation is the gate.Location of a page request. Replacing it turns the response
// into a redirect to the new address.
type requestLocation struct {
	mu       sync.Mutex
	current  *url.URL
	replaced chan struct{}
	once     sync.Once
}

func newRequestLocation(u *url.URL) *requestLocation {
	cp := *u
	return &requestLocation{
		current:  &cp,
		replaced: make(chan struct{}),
	}
}

func (l *requestLocation) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l.current
	return &cp
}

func (l *requestLocation) Replace(u *url.URL) {
	l.mu.Lock()
	cp := *u
	l.current = &cp
	l.mu.Unlock()
	l.once.Do(func() { close(l.replaced) })
}

// Replaced is closed once the location has been replaced.
func (l *requestLocation) Replaced() <-chan struct{} {
	return l.replaced
}
