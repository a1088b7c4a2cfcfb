package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"

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

	require.NoError(t, db.AutoMigrate(&models.TestCaseExecution{}, &models.RunLock{}))
	return db
}

func setupManager(t *testing.T) (*Manager, *runlock.Manager, repository.ExecutionRepository, *gorm.DB) {
	db := setupTestDB(t)
	repo := repository.NewExecutionRepository(db)
	locks := runlock.NewManager(db, runlock.DefaultTTL)
	return NewManager(repo, locks), locks, repo, db
}

func acquire(t *testing.T, locks *runlock.Manager, tabID, runID string) *runlock.Session {
	sess := locks.Session(tabID)
	_, err := locks.Acquire(sess, runID, runlock.Request{LockedBy: "alice@example.com", Reason: "test"})
	require.NoError(t, err)
	return sess
}

func TestCreate_RequiresLock(t *testing.T) {
	mgr, locks, _, _ := setupManager(t)
	sess := locks.Session("tab-1")

	_, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.LockExpired))
}

func TestCreate_StampsDefaults(t *testing.T) {
	mgr, locks, _, _ := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	exec, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusNotRun, exec.Status)
	assert.False(t, exec.ExecutionDate.IsZero())
	assert.NotZero(t, exec.ID)
}

func TestCreate_IdempotentPerRunAndCase(t *testing.T) {
	mgr, locks, _, db := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	first, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.NoError(t, err)

	second, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.TestCaseExecution{}).
		Where("run_id = ? AND case_id = ?", "TR001", "TC001").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_ConcurrentSamePairInsertsOnce(t *testing.T) {
	mgr, locks, _, db := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.TestCaseExecution{}).
		Where("run_id = ? AND case_id = ?", "TR001", "TC001").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreate_DistinctCasesAllInserted(t *testing.T) {
	mgr, locks, _, _ := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	for _, caseID := range []string{"TC001", "TC002", "TC003"} {
		_, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: caseID})
		require.NoError(t, err)
	}

	execs, err := mgr.List("TR001")
	require.NoError(t, err)
	assert.Len(t, execs, 3)
}

func TestList_OrderedBySortOrderThenDate(t *testing.T) {
	mgr, _, repo, _ := setupManager(t)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	seed := []models.TestCaseExecution{
		{RunID: "TR001", CaseID: "TC003", Order: 2, ExecutionDate: older},
		{RunID: "TR001", CaseID: "TC001", Order: 0, ExecutionDate: older},
		{RunID: "TR001", CaseID: "TC002", Order: 1, ExecutionDate: older},
		{RunID: "TR001", CaseID: "TC004", Order: 1, ExecutionDate: newer},
	}
	for i := range seed {
		require.NoError(t, repo.Create(&seed[i]))
	}

	execs, err := mgr.List("TR001")
	require.NoError(t, err)
	require.Len(t, execs, 4)
	assert.Equal(t, "TC001", execs[0].CaseID)
	// Equal order: the newer record surfaces first.
	assert.Equal(t, "TC004", execs[1].CaseID)
	assert.Equal(t, "TC002", execs[2].CaseID)
	assert.Equal(t, "TC003", execs[3].CaseID)
}

func TestUpdate_PatchesFields(t *testing.T) {
	mgr, locks, _, _ := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	exec, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.NoError(t, err)

	status := models.ExecutionStatusPass
	notes := "verified on build 42"
	updated, err := mgr.Update(exec.ID, Patch{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPass, updated.Status)
	assert.Equal(t, "verified on build 42", updated.Notes)
	// Untouched fields survive the patch.
	assert.Equal(t, "TC001", updated.CaseID)
}

func TestUpdate_InvalidStatus(t *testing.T) {
	mgr, _, _, _ := setupManager(t)

	bad := models.ExecutionStatus("Maybe")
	_, err := mgr.Update(1, Patch{Status: &bad})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Validation))
}

func TestUpdate_NotFound(t *testing.T) {
	mgr, _, _, _ := setupManager(t)

	// Both a field patch and an empty patch on a missing record surface the
	// same kind, so the HTTP layer maps them to 404 alike.
	notes := "x"
	_, err := mgr.Update(999, Patch{Notes: &notes})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))

	_, err = mgr.Update(999, Patch{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))
}

func TestGetTestRunStats_CountsDuplicatesOnce(t *testing.T) {
	mgr, _, repo, _ := setupManager(t)

	now := time.Now()
	seed := []models.TestCaseExecution{
		{RunID: "TR001", CaseID: "TC001", Status: models.ExecutionStatusPass, Order: 0, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC001", Status: models.ExecutionStatusFail, Order: 3, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC002", Status: models.ExecutionStatusFail, Order: 1, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC003", Status: models.ExecutionStatusNotRun, Order: 2, ExecutionDate: now},
	}
	for i := range seed {
		require.NoError(t, repo.Create(&seed[i]))
	}

	stats, err := mgr.GetTestRunStats("TR001")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.NotRun)
	assert.InDelta(t, 33.33, stats.PassRate, 0.01)
}

func TestGetTestRunStats_EmptyRun(t *testing.T) {
	mgr, _, _, _ := setupManager(t)

	stats, err := mgr.GetTestRunStats("TR001")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.PassRate)
}

func TestCleanupDuplicates_KeepsFirstInDisplayOrder(t *testing.T) {
	mgr, _, repo, _ := setupManager(t)

	now := time.Now()
	seed := []models.TestCaseExecution{
		{RunID: "TR001", CaseID: "TC001", Status: models.ExecutionStatusPass, Order: 0, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC001", Status: models.ExecutionStatusFail, Order: 3, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC002", Status: models.ExecutionStatusPass, Order: 1, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC001", Status: models.ExecutionStatusBlocked, Order: 2, ExecutionDate: now},
	}
	for i := range seed {
		require.NoError(t, repo.Create(&seed[i]))
	}

	removed, err := mgr.CleanupDuplicates("TR001")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	execs, err := mgr.List("TR001")
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "TC001", execs[0].CaseID)
	assert.Equal(t, models.ExecutionStatusPass, execs[0].Status)
	assert.Equal(t, "TC002", execs[1].CaseID)
}

func TestCleanupDuplicates_Idempotent(t *testing.T) {
	mgr, _, repo, _ := setupManager(t)

	now := time.Now()
	for i, caseID := range []string{"TC001", "TC001", "TC002"} {
		require.NoError(t, repo.Create(&models.TestCaseExecution{
			RunID: "TR001", CaseID: caseID, Order: i, ExecutionDate: now,
		}))
	}

	removed, err := mgr.CleanupDuplicates("TR001")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = mgr.CleanupDuplicates("TR001")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCleanupAllDuplicates_ReportsOnlyAffectedRuns(t *testing.T) {
	mgr, _, repo, _ := setupManager(t)

	now := time.Now()
	seed := []models.TestCaseExecution{
		{RunID: "TR001", CaseID: "TC001", Order: 0, ExecutionDate: now},
		{RunID: "TR001", CaseID: "TC001", Order: 1, ExecutionDate: now},
		{RunID: "TR002", CaseID: "TC001", Order: 0, ExecutionDate: now},
		{RunID: "TR002", CaseID: "TC002", Order: 1, ExecutionDate: now},
	}
	for i := range seed {
		require.NoError(t, repo.Create(&seed[i]))
	}

	results, err := mgr.CleanupAllDuplicates()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "TR001", results[0].RunID)
	assert.Equal(t, 1, results[0].DuplicatesRemoved)
}

func TestDeleteByTestRunID(t *testing.T) {
	mgr, locks, _, _ := setupManager(t)
	sess := acquire(t, locks, "tab-1", "TR001")

	_, err := mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC001"})
	require.NoError(t, err)
	_, err = mgr.Create(sess, &models.TestCaseExecution{RunID: "TR001", CaseID: "TC002"})
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteByTestRunID("TR001"))

	execs, err := mgr.List("TR001")
	require.NoError(t, err)
	assert.Empty(t, execs)
}
