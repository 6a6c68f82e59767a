package session

import (
	"strconv"
	"time"

	"spendbot/internal/cache"
	"spendbot/internal/core"
	"spendbot/internal/log"
)

// Store keeps sessions keyed by user id. Sessions untouched for longer than
// the idle timeout are dropped, and the least recently used ones go first
// when the store is full.
type Store struct {
	items  *cache.LRUCache[*Session]
	now    func() time.Time
	logger *log.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

func NewStore(maxUsers int, idleTimeout time.Duration, logger *log.Logger, opts ...Option) *Store {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSession)

	items := cache.NewLRUCache[*Session](maxUsers, idleTimeout,
		cache.WithSlidingExpiry[*Session](),
		cache.WithClock[*Session](o.now),
		cache.WithEvictCallback(func(_ string, s *Session) {
			logger.Debug("Session dropped",
				log.FieldUserID, s.UserID,
				log.FieldPhase, s.Phase.String(),
				"pending", len(s.Pending))
		}),
	)
	return &Store{items: items, now: o.now, logger: logger}
}

// Cache exposes the underlying cache so a cache.Manager can sweep it.
func (s *Store) Cache() cache.Cleaner {
	return s.items
}

// Get returns the live session of userID.
func (s *Store) Get(userID int64) (*Session, bool) {
	sess, ok := s.items.Get(key(userID))
	if ok {
		sess.LastSeen = s.now()
	}
	return sess, ok
}

// Seed creates the session of a user from its ledger entry and stores it.
func (s *Store) Seed(userID int64, u core.UserLedger) *Session {
	sess := &Session{
		UserID:   userID,
		Phase:    Idle,
		AnchorID: u.MenuID,
		LastSeen: s.now(),
	}
	s.items.Set(key(userID), sess)
	s.logger.Debug("Session created", log.FieldUserID, userID, "anchor", u.MenuID)
	return sess
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
