package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/noah-isme/classroom-portal/internal/models"
	"github.com/noah-isme/classroom-portal/pkg/debounce"
	appErrors "github.com/noah-isme/classroom-portal/pkg/errors"
)

// ErrSearchSuperseded is returned to a search replaced by a newer keystroke.
var ErrSearchSuperseded = appErrors.New("SEARCH_SUPERSEDED", http.StatusConflict, "a newer search replaced this one")

// SearchScope selects the listing a search runs against.
type SearchScope string

// Search scopes.
const (
	SearchSessions        SearchScope = "sessions"
	SearchTeacherRequests SearchScope = "teacher-requests"
)

type searchLister interface {
	List(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*SessionList, error)
	TeacherRequests(ctx context.Context, principal *models.Principal, filter models.SessionFilter) (*SessionList, error)
}

type searchOutcome struct {
	result *SessionList
	err    error
}

type pendingSearch struct {
	debouncer *debounce.Debouncer
	waiter    chan searchOutcome
}

// SessionSearch coalesces rapid search requests per user and scope: only the
// last request inside the debounce window reaches the upstream.
type SessionSearch struct {
	lister  searchLister
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingSearch
}

// NewSessionSearch constructs the coalescer.
func NewSessionSearch(lister searchLister, window time.Duration) *SessionSearch {
	if window <= 0 {
		window = debounce.DefaultWindow
	}
	return &SessionSearch{lister: lister, window: window, pending: make(map[string]*pendingSearch)}
}

// Search waits for the debounce window and runs the query unless a newer one replaced it.
func (s *SessionSearch) Search(ctx context.Context, principal *models.Principal, scope SearchScope, filter models.SessionFilter) (*SessionList, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	key := principal.UserID + "|" + string(scope)
	waiter := make(chan searchOutcome, 1)

	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok {
		p = &pendingSearch{debouncer: debounce.New(s.window)}
		s.pending[key] = p
	}
	if p.waiter != nil {
		p.waiter <- searchOutcome{err: ErrSearchSuperseded}
	}
	p.waiter = waiter
	p.debouncer.Trigger(func() {
		s.mu.Lock()
		if p.waiter != waiter {
			s.mu.Unlock()
			return
		}
		p.waiter = nil
		delete(s.pending, key)
		s.mu.Unlock()

		result, err := s.run(ctx, principal, scope, filter)
		waiter <- searchOutcome{result: result, err: err}
	})
	s.mu.Unlock()

	select {
	case out := <-waiter:
		return out.result, out.err
	case <-ctx.Done():
		s.mu.Lock()
		if p.waiter == waiter {
			p.waiter = nil
			p.debouncer.Stop()
			delete(s.pending, key)
		}
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (s *SessionSearch) run(ctx context.Context, principal *models.Principal, scope SearchScope, filter models.SessionFilter) (*SessionList, error) {
	if scope == SearchTeacherRequests {
		return s.lister.TeacherRequests(ctx, principal, filter)
	}
	return s.lister.List(ctx, principal, filter)
}
