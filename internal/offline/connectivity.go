package offline

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Signal is a settable connectivity flag. Changes delivers the latest
// transition; a slow reader only misses intermediate flips.
type Signal struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

func NewSignal(online bool) *Signal {
	return &Signal{online: online, changes: make(chan bool, 1)}
}

func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Signal) Changes() <-chan bool {
	return s.changes
}

// Set records the current state and publishes it when it changed.
func (s *Signal) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == online {
		return
	}
	s.online = online
	select {
	case s.changes <- online:
	default:
		select {
		case <-s.changes:
		default:
		}
		s.changes <- online
	}
}

// HealthProbe drives a Signal by polling the server health endpoint.
type HealthProbe struct {
	URL      string
	Client   *http.Client
	Interval time.Duration
	Signal   *Signal
}

func (p HealthProbe) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// Check reports whether the health endpoint answered 2xx.
func (p HealthProbe) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Run polls until ctx is done.
func (p HealthProbe) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	p.Signal.Set(p.Check(ctx))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Signal.Set(p.Check(ctx))
		}
	}
}
