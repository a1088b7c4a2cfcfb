package runlock

import (
	"errors"
	"testing"
	"time"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Each pooled connection would otherwise see its own empty in-memory DB.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.RunLock{}))
	return db
}

func TestAcquire_MutualExclusion(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	token, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com", Reason: "edit-test-run"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = mgr.Acquire(tab2, "TR001", Request{LockedBy: "bob@example.com", Reason: "edit-test-run"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.LockHeld))

	var ae *apperrors.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "alice@example.com", ae.LockedBy)
	assert.Equal(t, "tab-1", ae.TabID)
}

func TestAcquire_SameTabRefreshes(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)
	tab := mgr.Session("tab-1")

	first, err := mgr.Acquire(tab, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	second, err := mgr.Acquire(tab, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, mgr.AssertOwnership(tab, "TR001"))
}

func TestAcquire_DifferentRunsIndependent(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	_, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	_, err = mgr.Acquire(tab2, "TR002", Request{LockedBy: "bob@example.com"})
	require.NoError(t, err)
}

func TestAssertOwnership_ExpiredLock(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, 15*time.Millisecond)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	_, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	// The original holder's lease has lapsed; the stale row is reclaimed.
	err = mgr.AssertOwnership(tab1, "TR001")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.LockExpired))

	lock, err := mgr.Get("TR001")
	require.NoError(t, err)
	assert.Nil(t, lock)

	// Another tab can now take the lock.
	_, err = mgr.Acquire(tab2, "TR001", Request{LockedBy: "bob@example.com"})
	require.NoError(t, err)
}

func TestAcquire_TakesOverExpiredLock(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, 15*time.Millisecond)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	_, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = mgr.Acquire(tab2, "TR001", Request{LockedBy: "bob@example.com"})
	require.NoError(t, err)

	// The original tab's token no longer matches the live lock.
	err = mgr.AssertOwnership(tab1, "TR001")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.LockHeld))
}

func TestAssertOwnership_NoLock(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)
	tab := mgr.Session("tab-1")

	err := mgr.AssertOwnership(tab, "TR001")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.LockExpired))
}

func TestRelease_DeletesOwnLock(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	_, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	require.NoError(t, mgr.Release(tab1, "TR001", ""))

	lock, err := mgr.Get("TR001")
	require.NoError(t, err)
	assert.Nil(t, lock)

	_, err = mgr.Acquire(tab2, "TR001", Request{LockedBy: "bob@example.com"})
	require.NoError(t, err)
}

func TestRelease_WithoutLocalRecordIsNoop(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	_, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)

	// tab2 never acquired and supplies no token: nothing happens.
	require.NoError(t, mgr.Release(tab2, "TR001", ""))

	lock, err := mgr.Get("TR001")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "tab-1", lock.TabID)
}

func TestRelease_StaleTokenLeavesNewOwner(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, 15*time.Millisecond)

	tab1 := mgr.Session("tab-1")
	tab2 := mgr.Session("tab-2")

	staleToken, err := mgr.Acquire(tab1, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, err = mgr.Acquire(tab2, "TR001", Request{LockedBy: "bob@example.com"})
	require.NoError(t, err)

	// tab1's release references a lapsed lease; tab2's lock stays.
	require.NoError(t, mgr.Release(tab1, "TR001", staleToken))

	lock, err := mgr.Get("TR001")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "tab-2", lock.TabID)
}

func TestSession_EmptyTabIDGetsFreshIdentity(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	a := mgr.Session("")
	b := mgr.Session("")
	assert.NotEmpty(t, a.TabID)
	assert.NotEqual(t, a.TabID, b.TabID)

	// A tab id that holds a lock maps back to its session.
	c := mgr.Session("tab-1")
	_, err := mgr.Acquire(c, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	assert.Same(t, c, mgr.Session("tab-1"))
}

func registrySize(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func TestSessionRegistry_StaysBounded(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, DefaultTTL)

	// Requests without a tab header mint throwaway identities that must not
	// pile up in the registry.
	for i := 0; i < 100; i++ {
		mgr.Session("")
	}
	assert.Equal(t, 0, registrySize(mgr))

	// A session is registered only while it holds a token.
	sess := mgr.Session("tab-1")
	assert.Equal(t, 0, registrySize(mgr))

	_, err := mgr.Acquire(sess, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, registrySize(mgr))

	require.NoError(t, mgr.Release(sess, "TR001", ""))
	assert.Equal(t, 0, registrySize(mgr))
}

func TestSessionRegistry_EvictsOnObservedExpiry(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, 15*time.Millisecond)

	sess := mgr.Session("tab-1")
	_, err := mgr.Acquire(sess, "TR001", Request{LockedBy: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, registrySize(mgr))

	time.Sleep(30 * time.Millisecond)

	err = mgr.AssertOwnership(sess, "TR001")
	require.Error(t, err)
	assert.Equal(t, 0, registrySize(mgr))
}
