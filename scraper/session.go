package scraper

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pricecompare/selector"
)

// Tab is one browser page inside a domain session.
type Tab interface {
	// Navigate loads url and returns once the document is committed.
	Navigate(ctx context.Context, url string) error
	// WaitReady waits for readySelector, or for the DOM to settle when it is empty.
	WaitReady(ctx context.Context, readySelector string)
	// DismissOverlays removes cookie banners, login modals and similar.
	DismissOverlays(ctx context.Context)
	// Scroll walks down the page so lazy-loaded cards render.
	Scroll(ctx context.Context)
	// Content returns the current rendered HTML.
	Content(ctx context.Context) (string, error)
	// Root returns the live document element.
	Root(ctx context.Context) (selector.Node, error)
	// Close releases the page and its browser context.
	Close() error
}

// Opener creates a fresh session tab for a domain.
type Opener interface {
	Open(ctx context.Context, domain string) (Tab, error)
}

// Retirement thresholds for a session.
const (
	maxErrScore   = 3.0
	maxSessionUse = 50
	maxSessionAge = 50 * time.Minute
)

// health tracks how a session has been doing. Success lowers the error
// score by 0.5 (never below 0), failure raises it by 1.
type health struct {
	errScore  float64
	uses      int
	created   time.Time
	condemned bool
}

func (h *health) record(success bool) {
	h.uses++
	if success {
		h.errScore = math.Max(0, h.errScore-0.5)
		return
	}
	h.errScore += 1.0
}

func (h *health) retire(now time.Time) bool {
	return h.condemned || h.errScore >= maxErrScore ||
		h.uses >= maxSessionUse ||
		now.Sub(h.created) >= maxSessionAge
}

// session is one domain's browser context. lock is a 1-slot channel so
// acquiring it can honour a context.
type session struct {
	domain string
	tab    Tab
	lock   chan struct{}

	mu     sync.Mutex
	health health
}

func (s *session) condemn() {
	s.mu.Lock()
	s.health.condemned = true
	s.mu.Unlock()
}

// Lease is a session checked out for one scrape.
type Lease struct {
	Tab

	pool *SessionPool
	sess *session
	done atomic.Bool
}

// Release returns the session to the pool and records the outcome.
// It is safe to call more than once; only the first call counts.
func (l *Lease) Release(success bool) {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.release(l.sess, success)
}

// SessionPool keeps one browser session per domain and caps how many
// are in use at once.
type SessionPool struct {
	opener Opener
	sem    chan struct{}
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	active   atomic.Int32
}

// NewSessionPool creates a pool that opens sessions through opener and
// allows at most maxActive leases at a time.
func NewSessionPool(opener Opener, maxActive int) *SessionPool {
	if maxActive < 1 {
		maxActive = 1
	}
	return &SessionPool{
		opener:   opener,
		sem:      make(chan struct{}, maxActive),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Acquire checks out the session for domain, opening one if needed. It
// blocks while the global cap is reached or the domain's session is busy.
func (p *SessionPool) Acquire(ctx context.Context, domain string) (*Lease, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, categorizeError(ctx.Err(), "waiting for a browser session")
	}

	sess, err := p.checkout(ctx, domain)
	if err != nil {
		<-p.sem
		return nil, err
	}
	p.active.Add(1)
	return &Lease{Tab: sess.tab, pool: p, sess: sess}, nil
}

func (p *SessionPool) checkout(ctx context.Context, domain string) (*session, error) {
	for {
		sess := p.sessionFor(domain)
		select {
		case sess.lock <- struct{}{}:
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "waiting for the "+domain+" session")
		}

		// The session may have been recycled while we waited.
		p.mu.Lock()
		current := p.sessions[domain]
		p.mu.Unlock()
		if current != sess {
			<-sess.lock
			continue
		}

		if sess.tab == nil {
			tab, err := p.opener.Open(ctx, domain)
			if err != nil {
				p.drop(sess)
				<-sess.lock
				return nil, err
			}
			sess.tab = tab
			sess.mu.Lock()
			sess.health = health{created: p.now()}
			sess.mu.Unlock()
			slog.Debug("browser session opened", "domain", domain)
		}
		return sess, nil
	}
}

func (p *SessionPool) sessionFor(domain string) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[domain]
	if !ok {
		sess = &session{domain: domain, lock: make(chan struct{}, 1)}
		p.sessions[domain] = sess
	}
	return sess
}

func (p *SessionPool) release(sess *session, success bool) {
	sess.mu.Lock()
	sess.health.record(success)
	retire := sess.health.retire(p.now())
	h := sess.health
	sess.mu.Unlock()
	if retire {
		slog.Debug("retiring browser session", "domain", sess.domain,
			"errScore", h.errScore, "uses", h.uses)
		p.drop(sess)
	}
	<-sess.lock
	p.active.Add(-1)
	<-p.sem
}

// Recycle discards the domain's session so the next lease starts with a
// fresh browser context. A session that is leased is closed on release.
func (p *SessionPool) Recycle(domain string) {
	p.mu.Lock()
	sess, ok := p.sessions[domain]
	p.mu.Unlock()
	if !ok {
		return
	}
	// Mark it for retirement; release drops it.
	select {
	case sess.lock <- struct{}{}:
		p.drop(sess)
		<-sess.lock
	default:
		sess.condemn()
	}
	slog.Info("browser session recycled", "domain", domain)
}

// drop closes the session's tab and forgets it. Callers hold sess.lock.
func (p *SessionPool) drop(sess *session) {
	p.mu.Lock()
	if p.sessions[sess.domain] == sess {
		delete(p.sessions, sess.domain)
	}
	p.mu.Unlock()
	if sess.tab != nil {
		if err := sess.tab.Close(); err != nil {
			slog.Debug("closing browser session", "domain", sess.domain, "error", err)
		}
		sess.tab = nil
	}
}

// Active returns the number of leased sessions.
func (p *SessionPool) Active() int { return int(p.active.Load()) }

// Max returns the lease cap.
func (p *SessionPool) Max() int { return cap(p.sem) }

// Close discards every idle session. Leased sessions close on release.
func (p *SessionPool) Close() {
	p.mu.Lock()
	all := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		all = append(all, s)
	}
	p.mu.Unlock()
	for _, s := range all {
		select {
		case s.lock <- struct{}{}:
			p.drop(s)
			<-s.lock
		default:
			s.condemn()
		}
	}
}
