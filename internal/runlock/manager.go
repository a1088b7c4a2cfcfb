// Package runlock implements the advisory per-run lease that gives one
// browser tab exclusive write access to a run's execution records for a
// bounded window. Expiry of the lease is the sole deadlock recovery: a tab
// that crashes without releasing blocks others only until the TTL passes.
package runlock

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTTL is the lease window. Long enough to cover a bulk execution
// create, short enough that a crashed tab does not block others for long.
const DefaultTTL = 2 * time.Minute

// Request carries the attribution recorded on an acquired lock.
type Request struct {
	LockedBy string
	Reason   string
}

// Manager acquires and releases run locks and tracks per-tab sessions.
type Manager struct {
	db  *gorm.DB
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a lock manager. A non-positive ttl falls back to
// DefaultTTL.
func NewManager(db *gorm.DB, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		db:       db,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Session returns the registered session for a tab id, or a fresh one. An
// empty tab id gets a fresh random identity. Sessions are registered only
// while they hold a token (see Acquire), so tabs that never lock anything
// leave no trace in the registry.
func (m *Manager) Session(tabID string) *Session {
	if tabID == "" {
		tabID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[tabID]; ok {
		return sess
	}
	return newSession(tabID)
}

func (m *Manager) register(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.TabID] = sess
}

// evictIfIdle drops a session from the registry once it holds no tokens, so
// the registry stays bounded by the number of currently held locks.
func (m *Manager) evictIfIdle(sess *Session) {
	if !sess.idle() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[sess.TabID] == sess {
		delete(m.sessions, sess.TabID)
	}
}

// Acquire takes the run's lock for the session's tab and returns the fresh
// lock token. A live lock owned by a different tab fails with LockHeld naming
// the owner; an expired lock or the caller's own lock is taken over with a
// fresh token and expiry.
func (m *Manager) Acquire(sess *Session, runID string, req Request) (string, error) {
	token := uuid.NewString()
	now := time.Now()

	err := m.db.Transaction(func(tx *gorm.DB) error {
		var lock models.RunLock
		err := tx.Where("run_id = ?", runID).First(&lock).Error
		switch {
		case err == nil:
			if !lock.Expired(now) && lock.TabID != sess.TabID {
				return apperrors.LockHeldBy(runID, lock.LockedBy, lock.TabID)
			}
			lock.LockID = token
			lock.TabID = sess.TabID
			lock.LockedBy = req.LockedBy
			lock.Reason = req.Reason
			lock.LockedAt = now
			lock.ExpiresAt = now.Add(m.ttl)
			return tx.Save(&lock).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.RunLock{
				RunID:     runID,
				LockID:    token,
				TabID:     sess.TabID,
				LockedBy:  req.LockedBy,
				Reason:    req.Reason,
				LockedAt:  now,
				ExpiresAt: now.Add(m.ttl),
			}).Error
		default:
			return err
		}
	})
	if err != nil {
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			return "", ae
		}
		return "", apperrors.Wrap(apperrors.Store, "failed to acquire run lock", err)
	}

	sess.put(runID, token)
	m.register(sess)
	return token, nil
}

// Release gives the run's lock back. With an empty token the session's last
// recorded token is used; if the session holds none this is a no-op. The lock
// row is deleted only when it still references this token or this tab, so a
// lease another tab took over after expiry is left untouched. The local
// record is always cleared.
func (m *Manager) Release(sess *Session, runID, token string) error {
	if token == "" {
		token = sess.Token(runID)
		if token == "" {
			return nil
		}
	}
	defer func() {
		sess.clear(runID)
		m.evictIfIdle(sess)
	}()

	err := m.db.Transaction(func(tx *gorm.DB) error {
		var lock models.RunLock
		err := tx.Where("run_id = ?", runID).First(&lock).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if lock.LockID != token && lock.TabID != sess.TabID {
			return nil
		}
		return tx.Delete(&lock).Error
	})
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to release run lock", err)
	}
	return nil
}

// AssertOwnership verifies that the session still holds a live lock on the
// run. Required before any execution-record mutation that needs exclusivity.
func (m *Manager) AssertOwnership(sess *Session, runID string) error {
	lock, err := m.Get(runID)
	if err != nil {
		return err
	}
	if lock == nil {
		return apperrors.Newf(apperrors.LockExpired, "no active lock held for run %s", runID)
	}
	if lock.Expired(time.Now()) {
		// Lazy reclamation: whoever observes the stale lease deletes it.
		if delErr := m.db.Delete(lock).Error; delErr != nil {
			log.Printf("failed to delete expired lock for run %s: %v", runID, delErr)
		}
		sess.clear(runID)
		m.evictIfIdle(sess)
		return apperrors.Newf(apperrors.LockExpired, "lock on run %s expired", runID)
	}
	if lock.LockID != sess.Token(runID) {
		return apperrors.LockHeldBy(runID, lock.LockedBy, lock.TabID)
	}
	return nil
}

// Get reads the current lock row for a run, nil if none exists.
func (m *Manager) Get(runID string) (*models.RunLock, error) {
	var lock models.RunLock
	err := m.db.Where("run_id = ?", runID).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to read run lock", err)
	}
	return &lock, nil
}

// Purge removes any lock row for a run regardless of owner. Used when the
// run itself is deleted.
func (m *Manager) Purge(runID string) error {
	err := m.db.Where("run_id = ?", runID).Delete(&models.RunLock{}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to purge run lock", err)
	}
	return nil
}

// TTL exposes the configured lease window.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
