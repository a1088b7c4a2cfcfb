// Package execution manages per-(run, case) execution records: idempotent
// creation under the run lock, result updates, aggregate statistics and
// duplicate detection/repair. The at-most-one-record-per-(run, case)
// invariant is not enforced by storage, so every write path defends it and
// the cleanup utilities repair it.
package execution

import (
	"errors"
	"log"
	"time"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"

	"gorm.io/gorm"
)

// Stats aggregates a run's execution outcomes. Records sharing a case id are
// counted once.
type Stats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Blocked  int     `json:"blocked"`
	Skipped  int     `json:"skipped"`
	NotRun   int     `json:"notRun"`
	PassRate float64 `json:"passRate"`
}

// RunCleanup reports duplicate removal for one run.
type RunCleanup struct {
	RunID             string `json:"testRunId"`
	DuplicatesRemoved int    `json:"duplicatesRemoved"`
}

// Patch is a partial update of an execution record; nil fields are left
// untouched.
type Patch struct {
	ActualResult *string
	Status       *models.ExecutionStatus
	TestedBy     *string
	Notes        *string
	Order        *int
}

// Manager coordinates execution record writes.
type Manager struct {
	executions repository.ExecutionRepository
	locks      *runlock.Manager
}

// NewManager creates an execution record manager.
func NewManager(executions repository.ExecutionRepository, locks *runlock.Manager) *Manager {
	return &Manager{executions: executions, locks: locks}
}

// Create inserts an execution record for (exec.RunID, exec.CaseID). The
// caller's session must hold the run's lock. If a record for the pair already
// exists the create is idempotent: the existing record is returned unchanged
// and the duplicate is logged, not inserted. ExecutionDate is stamped at
// insertion time.
func (m *Manager) Create(sess *runlock.Session, exec *models.TestCaseExecution) (*models.TestCaseExecution, error) {
	if err := m.locks.AssertOwnership(sess, exec.RunID); err != nil {
		return nil, err
	}

	exec.ExecutionDate = time.Now()
	if exec.Status == "" {
		exec.Status = models.ExecutionStatusNotRun
	}
	existing, err := m.executions.CreateIfAbsent(exec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to create execution", err)
	}
	if existing != nil {
		log.Printf("duplicate execution prevented for run %s case %s (kept id %d)",
			exec.RunID, exec.CaseID, existing.ID)
		return existing, nil
	}
	return exec, nil
}

// Update merges the patch into the record. No lock ownership check: per-field
// edits during live execution are allowed without re-acquiring, since the
// creating flow already validated at batch-create time.
func (m *Manager) Update(id uint, patch Patch) (*models.TestCaseExecution, error) {
	fields := make(map[string]interface{})
	if patch.ActualResult != nil {
		fields["actual_result"] = *patch.ActualResult
	}
	if patch.Status != nil {
		if !models.ValidExecutionStatus(*patch.Status) {
			return nil, apperrors.Newf(apperrors.Validation, "invalid execution status %q", *patch.Status)
		}
		fields["status"] = *patch.Status
	}
	if patch.TestedBy != nil {
		fields["tested_by"] = *patch.TestedBy
	}
	if patch.Notes != nil {
		fields["notes"] = *patch.Notes
	}
	if patch.Order != nil {
		fields["sort_order"] = *patch.Order
	}

	if len(fields) > 0 {
		if err := m.executions.UpdateFields(id, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.Newf(apperrors.NotFound, "execution record %d not found", id)
			}
			return nil, apperrors.Wrap(apperrors.Store, "failed to update execution", err)
		}
	}

	updated, err := m.executions.FindByID(id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to reload execution", err)
	}
	if updated == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "execution record %d not found", id)
	}
	return updated, nil
}

// Delete removes one execution record.
func (m *Manager) Delete(id uint) error {
	if err := m.executions.Delete(id); err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to delete execution", err)
	}
	return nil
}

// DeleteByTestRunID removes all execution records of a run.
func (m *Manager) DeleteByTestRunID(runID string) error {
	if err := m.executions.DeleteByRunID(runID); err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to delete executions", err)
	}
	return nil
}

// List returns the run's execution records in display order (order asc,
// execution date desc on ties).
func (m *Manager) List(runID string) ([]models.TestCaseExecution, error) {
	execs, err := m.executions.FindByRunID(runID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to list executions", err)
	}
	return execs, nil
}

// Get returns one execution record, nil if absent.
func (m *Manager) Get(id uint) (*models.TestCaseExecution, error) {
	exec, err := m.executions.FindByID(id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to read execution", err)
	}
	return exec, nil
}

// GetTestRunStats counts a run's outcomes. Records are deduplicated by case
// id first (keeping the first record in listing order per case), because
// storage does not guarantee the at-most-one invariant.
func (m *Manager) GetTestRunStats(runID string) (*Stats, error) {
	execs, err := m.executions.FindByRunID(runID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to load executions for stats", err)
	}

	seen := make(map[string]bool, len(execs))
	stats := &Stats{}
	for i := range execs {
		exec := &execs[i]
		if seen[exec.CaseID] {
			continue
		}
		seen[exec.CaseID] = true

		stats.Total++
		switch exec.Status {
		case models.ExecutionStatusPass:
			stats.Passed++
		case models.ExecutionStatusFail:
			stats.Failed++
		case models.ExecutionStatusBlocked:
			stats.Blocked++
		case models.ExecutionStatusSkip:
			stats.Skipped++
		default:
			stats.NotRun++
		}
	}
	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total) * 100
	}
	return stats, nil
}

// CleanupDuplicates walks the run's records in order, keeps the first
// occurrence of each case id and deletes the rest. Returns the number
// removed. Idempotent: a second pass removes nothing.
func (m *Manager) CleanupDuplicates(runID string) (int, error) {
	execs, err := m.executions.FindByRunID(runID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Store, "failed to load executions for cleanup", err)
	}

	seen := make(map[string]bool, len(execs))
	var duplicates []uint
	for i := range execs {
		exec := &execs[i]
		if seen[exec.CaseID] {
			duplicates = append(duplicates, exec.ID)
			continue
		}
		seen[exec.CaseID] = true
	}

	for _, id := range duplicates {
		if err := m.executions.Delete(id); err != nil {
			return 0, apperrors.Wrap(apperrors.Store, "failed to delete duplicate execution", err)
		}
	}
	if len(duplicates) > 0 {
		log.Printf("removed %d duplicate executions from run %s", len(duplicates), runID)
	}
	return len(duplicates), nil
}

// CleanupAllDuplicates applies CleanupDuplicates to every run that has
// execution records and reports the runs that actually had duplicates.
func (m *Manager) CleanupAllDuplicates() ([]RunCleanup, error) {
	runIDs, err := m.executions.DistinctRunIDs()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to list runs for cleanup", err)
	}

	var results []RunCleanup
	for _, runID := range runIDs {
		removed, err := m.CleanupDuplicates(runID)
		if err != nil {
			return nil, err
		}
		if removed > 0 {
			results = append(results, RunCleanup{RunID: runID, DuplicatesRemoved: removed})
		}
	}
	return results, nil
}
