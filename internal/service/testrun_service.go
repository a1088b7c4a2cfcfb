package service

import (
	"log"
	"strings"
	"sync"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/execution"
	"github.com/itskevin-zz/testframe/internal/idgen"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"
	"github.com/itskevin-zz/testframe/internal/websocket"
)

// TestRunService manages test runs, their execution records and run
// duplication.
type TestRunService interface {
	CreateTestRun(sess *runlock.Session, createdBy string, req *CreateTestRunRequest) (*models.TestRun, error)
	GetTestRun(runID string) (*TestRunDetail, error)
	ListTestRuns(limit, offset int) ([]models.TestRun, int64, error)
	UpdateTestRun(runID string, req *UpdateTestRunRequest) (*models.TestRun, error)
	UpdateRunCases(sess *runlock.Session, editedBy, runID string, caseIDs []string) (*TestRunDetail, error)
	DeleteTestRun(runID string) error

	Duplicate(sess *runlock.Session, requestedBy, sourceRunID, newName string) (*models.TestRun, error)

	RecordResult(testedBy string, executionID uint, req *RecordResultRequest) (*models.TestCaseExecution, error)
	GetStats(runID string) (*execution.Stats, error)
	CleanupDuplicates(runID string) (int, error)
	CleanupAllDuplicates() ([]execution.RunCleanup, error)
}

type testRunService struct {
	runs  repository.TestRunRepository
	cases repository.TestCaseRepository
	execs *execution.Manager
	locks *runlock.Manager
	ids   *idgen.Allocator
	hub   *websocket.Hub
}

// NewTestRunService creates a new test run service. hub may be nil when no
// live feed is wanted (tests).
func NewTestRunService(
	runs repository.TestRunRepository,
	cases repository.TestCaseRepository,
	execs *execution.Manager,
	locks *runlock.Manager,
	ids *idgen.Allocator,
	hub *websocket.Hub,
) TestRunService {
	return &testRunService{
		runs:  runs,
		cases: cases,
		execs: execs,
		locks: locks,
		ids:   ids,
		hub:   hub,
	}
}

// ===== Request/Response DTOs =====

type CreateTestRunRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	CaseIDs     []string `json:"caseIds"`
}

type UpdateTestRunRequest struct {
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Status      models.RunStatus `json:"status"`
}

type DuplicateRunRequest struct {
	Name string `json:"name" binding:"required"`
}

type RecordResultRequest struct {
	Status       models.ExecutionStatus `json:"status" binding:"required"`
	ActualResult string                 `json:"actualResult"`
	Notes        string                 `json:"notes"`
}

// TestRunDetail bundles a run with its ordered executions and stats.
type TestRunDetail struct {
	Run        *models.TestRun            `json:"run"`
	Executions []models.TestCaseExecution `json:"executions"`
	Stats      *execution.Stats           `json:"stats"`
}

// ===== Run Lifecycle =====

func (s *testRunService) CreateTestRun(sess *runlock.Session, createdBy string, req *CreateTestRunRequest) (*models.TestRun, error) {
	if err := s.validateRunName(req.Name); err != nil {
		return nil, err
	}
	entries, err := s.resolveCases(req.CaseIDs)
	if err != nil {
		return nil, err
	}

	runID, err := s.ids.Generate(idgen.TestRunKind)
	if err != nil {
		return nil, err
	}

	return s.createRunWithEntries(sess, runID, createdBy, "create-test-run", req.Name, req.Description, entries)
}

func (s *testRunService) GetTestRun(runID string) (*TestRunDetail, error) {
	run, err := s.runs.FindByRunID(runID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test run", err)
	}
	if run == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test run %s not found", runID)
	}

	execs, err := s.execs.List(runID)
	if err != nil {
		return nil, err
	}
	stats, err := s.execs.GetTestRunStats(runID)
	if err != nil {
		return nil, err
	}
	return &TestRunDetail{Run: run, Executions: execs, Stats: stats}, nil
}

func (s *testRunService) ListTestRuns(limit, offset int) ([]models.TestRun, int64, error) {
	return s.runs.FindAll(limit, offset)
}

func (s *testRunService) UpdateTestRun(runID string, req *UpdateTestRunRequest) (*models.TestRun, error) {
	run, err := s.runs.FindByRunID(runID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test run", err)
	}
	if run == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test run %s not found", runID)
	}

	if req.Name != "" && !strings.EqualFold(req.Name, run.Name) {
		if err := s.validateRunName(req.Name); err != nil {
			return nil, err
		}
		run.Name = req.Name
	}
	if req.Description != nil {
		run.Description = *req.Description
	}
	if req.Status != "" {
		if !models.ValidRunStatus(req.Status) {
			return nil, apperrors.Newf(apperrors.Validation, "invalid run status %q", req.Status)
		}
		run.Status = req.Status
	}

	if err := s.runs.Update(run); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to update test run", err)
	}
	if s.hub != nil {
		s.hub.Broadcast(runID, "run_updated", run)
	}
	return run, nil
}

// UpdateRunCases syncs a run's execution records with the given ordered case
// selection: missing records are created under the run lock, records for
// removed cases are deleted, retained records get their order updated.
func (s *testRunService) UpdateRunCases(sess *runlock.Session, editedBy, runID string, caseIDs []string) (*TestRunDetail, error) {
	run, err := s.runs.FindByRunID(runID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test run", err)
	}
	if run == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test run %s not found", runID)
	}
	entries, err := s.resolveCases(caseIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.locks.Acquire(sess, runID, runlock.Request{
		LockedBy: editedBy,
		Reason:   "edit-test-run",
	}); err != nil {
		return nil, err
	}
	defer s.releaseQuietly(sess, runID)

	existing, err := s.execs.List(runID)
	if err != nil {
		return nil, err
	}
	desired := make(map[string]int, len(entries))
	for _, e := range entries {
		desired[e.caseID] = e.order
	}

	present := make(map[string]bool, len(existing))
	for i := range existing {
		exec := &existing[i]
		order, keep := desired[exec.CaseID]
		if !keep || present[exec.CaseID] {
			// Removed from the run, or a duplicate of a case already seen.
			if err := s.execs.Delete(exec.ID); err != nil {
				return nil, err
			}
			continue
		}
		present[exec.CaseID] = true
		if exec.Order != order {
			if _, err := s.execs.Update(exec.ID, execution.Patch{Order: &order}); err != nil {
				return nil, err
			}
		}
	}

	for _, e := range entries {
		if present[e.caseID] {
			continue
		}
		if _, err := s.execs.Create(sess, &models.TestCaseExecution{
			RunID:  runID,
			CaseID: e.caseID,
			Status: models.ExecutionStatusNotRun,
			Order:  e.order,
		}); err != nil {
			return nil, err
		}
	}

	return s.GetTestRun(runID)
}

func (s *testRunService) DeleteTestRun(runID string) error {
	run, err := s.runs.FindByRunID(runID)
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to find test run", err)
	}
	if run == nil {
		return apperrors.Newf(apperrors.NotFound, "test run %s not found", runID)
	}

	if err := s.execs.DeleteByTestRunID(runID); err != nil {
		return err
	}
	if err := s.locks.Purge(runID); err != nil {
		return err
	}
	if err := s.runs.Delete(runID); err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to delete test run", err)
	}
	return nil
}

// ===== Duplication Workflow =====

// Duplicate clones a run into a new run with fresh, reset execution records.
//
// The new run's lock is acquired under the freshly allocated id before the
// run row exists, so the lock document may precede the run document. Copies
// are issued concurrently; the per-(run, case) idempotent create keeps the
// invariant even under concurrent issuance. The lock is always released; a
// failure after the run row was created leaves partial state for the cleanup
// utilities, not a rollback.
func (s *testRunService) Duplicate(sess *runlock.Session, requestedBy, sourceRunID, newName string) (*models.TestRun, error) {
	source, err := s.runs.FindByRunID(sourceRunID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test run", err)
	}
	if source == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test run %s not found", sourceRunID)
	}

	if err := s.validateRunName(newName); err != nil {
		return nil, err
	}

	newRunID, err := s.ids.Generate(idgen.TestRunKind)
	if err != nil {
		return nil, err
	}

	if _, err := s.locks.Acquire(sess, newRunID, runlock.Request{
		LockedBy: requestedBy,
		Reason:   "duplicate-test-run",
	}); err != nil {
		return nil, err
	}
	defer s.releaseQuietly(sess, newRunID)

	newRun := &models.TestRun{
		RunID:       newRunID,
		Name:        newName,
		Description: source.Description,
		Status:      models.RunStatusNotStarted,
		CreatedBy:   requestedBy,
	}
	if err := s.runs.Create(newRun); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to create duplicated run", err)
	}

	sourceExecs, err := s.execs.List(sourceRunID)
	if err != nil {
		return nil, err
	}

	// The source run may itself contain duplicates; copy each case once,
	// first-seen in listing order.
	seen := make(map[string]bool, len(sourceExecs))
	var unique []models.TestCaseExecution
	for i := range sourceExecs {
		if seen[sourceExecs[i].CaseID] {
			continue
		}
		seen[sourceExecs[i].CaseID] = true
		unique = append(unique, sourceExecs[i])
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(unique))
	for i := range unique {
		src := unique[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.execs.Create(sess, &models.TestCaseExecution{
				RunID:  newRunID,
				CaseID: src.CaseID,
				Status: models.ExecutionStatusNotRun,
				Order:  src.Order,
			})
			if err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	return newRun, nil
}

// ===== Results & Maintenance =====

// RecordResult saves the outcome of one execution, stamping the tester's
// identity. The first recorded result moves a Not Started run to In Progress.
// No lock ownership check here: single-record edits during live execution
// are allowed without holding the run lock.
func (s *testRunService) RecordResult(testedBy string, executionID uint, req *RecordResultRequest) (*models.TestCaseExecution, error) {
	exec, err := s.execs.Get(executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "execution record %d not found", executionID)
	}

	updated, err := s.execs.Update(executionID, execution.Patch{
		Status:       &req.Status,
		ActualResult: &req.ActualResult,
		Notes:        &req.Notes,
		TestedBy:     &testedBy,
	})
	if err != nil {
		return nil, err
	}

	run, err := s.runs.FindByRunID(exec.RunID)
	if err == nil && run != nil && run.Status == models.RunStatusNotStarted {
		run.Status = models.RunStatusInProgress
		if err := s.runs.Update(run); err != nil {
			log.Printf("failed to advance run %s to In Progress: %v", run.RunID, err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(exec.RunID, "execution_updated", updated)
		if stats, err := s.execs.GetTestRunStats(exec.RunID); err == nil {
			s.hub.Broadcast(exec.RunID, "stats", stats)
		}
	}
	return updated, nil
}

func (s *testRunService) GetStats(runID string) (*execution.Stats, error) {
	return s.execs.GetTestRunStats(runID)
}

func (s *testRunService) CleanupDuplicates(runID string) (int, error) {
	return s.execs.CleanupDuplicates(runID)
}

func (s *testRunService) CleanupAllDuplicates() ([]execution.RunCleanup, error) {
	return s.execs.CleanupAllDuplicates()
}

// ===== Helpers =====

type caseEntry struct {
	caseID string
	order  int
}

// validateRunName rejects empty names and names already in use. The scan is
// advisory and races with concurrent creates of the same name; that matches
// the storage model, which has no cross-document uniqueness constraint.
func (s *testRunService) validateRunName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.Newf(apperrors.Validation, "run name must not be empty")
	}
	taken, err := s.runs.NameTaken(name)
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to check run name", err)
	}
	if taken {
		return apperrors.Newf(apperrors.Validation, "run name %q is already in use", name)
	}
	return nil
}

// resolveCases validates that every selected case exists and assigns order
// by position.
func (s *testRunService) resolveCases(caseIDs []string) ([]caseEntry, error) {
	entries := make([]caseEntry, 0, len(caseIDs))
	seen := make(map[string]bool, len(caseIDs))
	for _, caseID := range caseIDs {
		if seen[caseID] {
			continue
		}
		seen[caseID] = true
		tc, err := s.cases.FindByCaseID(caseID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Store, "failed to find test case", err)
		}
		if tc == nil {
			return nil, apperrors.Newf(apperrors.NotFound, "test case %s not found", caseID)
		}
		entries = append(entries, caseEntry{caseID: caseID, order: len(entries)})
	}
	return entries, nil
}

// createRunWithEntries creates a run row plus one Not Run execution per entry,
// all under a freshly acquired lock on the new run id.
func (s *testRunService) createRunWithEntries(sess *runlock.Session, runID, createdBy, reason, name, description string, entries []caseEntry) (*models.TestRun, error) {
	if _, err := s.locks.Acquire(sess, runID, runlock.Request{
		LockedBy: createdBy,
		Reason:   reason,
	}); err != nil {
		return nil, err
	}
	defer s.releaseQuietly(sess, runID)

	run := &models.TestRun{
		RunID:       runID,
		Name:        name,
		Description: description,
		Status:      models.RunStatusNotStarted,
		CreatedBy:   createdBy,
	}
	if err := s.runs.Create(run); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to create test run", err)
	}

	for _, e := range entries {
		if _, err := s.execs.Create(sess, &models.TestCaseExecution{
			RunID:  runID,
			CaseID: e.caseID,
			Status: models.ExecutionStatusNotRun,
			Order:  e.order,
		}); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func (s *testRunService) releaseQuietly(sess *runlock.Session, runID string) {
	if err := s.locks.Release(sess, runID, ""); err != nil {
		log.Printf("failed to release lock for run %s: %v", runID, err)
	}
}
