package service

import (
	"testing"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/execution"
	"github.com/itskevin-zz/testframe/internal/idgen"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTemplateService(t *testing.T) (TemplateService, TestRunService, *runlock.Manager, *gorm.DB) {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.TestRunTemplate{}, &models.TestRunTemplateCase{}))

	runs := repository.NewTestRunRepository(db)
	cases := repository.NewTestCaseRepository(db)
	execRepo := repository.NewExecutionRepository(db)
	locks := runlock.NewManager(db, runlock.DefaultTTL)
	execs := execution.NewManager(execRepo, locks)
	ids := idgen.NewAllocator(db)
	runSvc := NewTestRunService(runs, cases, execs, locks, ids, nil)
	tplSvc := NewTemplateService(repository.NewTemplateRepository(db), runs, runSvc, execs, ids)
	return tplSvc, runSvc, locks, db
}

func TestSaveFromRun_CapturesOrderedCases(t *testing.T) {
	tplSvc, runSvc, locks, db := setupTemplateService(t)
	seedTestCases(t, db, "TC001", "TC002", "TC003")
	sess := locks.Session("tab-1")

	_, err := runSvc.CreateTestRun(sess, "alice@example.com", &CreateTestRunRequest{
		Name:    "Release 1.0",
		CaseIDs: []string{"TC003", "TC001", "TC002"},
	})
	require.NoError(t, err)

	tpl, err := tplSvc.SaveFromRun("alice@example.com", "TR001", &SaveTemplateRequest{
		Name: "Release checklist",
	})
	require.NoError(t, err)
	assert.Equal(t, "TRT001", tpl.TemplateID)

	detail, err := tplSvc.GetTemplate("TRT001")
	require.NoError(t, err)
	require.Len(t, detail.Cases, 3)
	assert.Equal(t, "TC003", detail.Cases[0].CaseID)
	assert.Equal(t, "TC001", detail.Cases[1].CaseID)
	assert.Equal(t, "TC002", detail.Cases[2].CaseID)
}

func TestSaveFromRun_RejectsEmptyName(t *testing.T) {
	tplSvc, _, _, _ := setupTemplateService(t)

	_, err := tplSvc.SaveFromRun("alice@example.com", "TR001", &SaveTemplateRequest{Name: " "})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Validation))
}

func TestSaveFromRun_RunNotFound(t *testing.T) {
	tplSvc, _, _, _ := setupTemplateService(t)

	_, err := tplSvc.SaveFromRun("alice@example.com", "TR404", &SaveTemplateRequest{Name: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))
}

func TestInstantiate_CreatesRunFromTemplate(t *testing.T) {
	tplSvc, runSvc, locks, db := setupTemplateService(t)
	seedTestCases(t, db, "TC001", "TC002")
	sess := locks.Session("tab-1")

	_, err := runSvc.CreateTestRun(sess, "alice@example.com", &CreateTestRunRequest{
		Name:    "Release 1.0",
		CaseIDs: []string{"TC002", "TC001"},
	})
	require.NoError(t, err)

	_, err = tplSvc.SaveFromRun("alice@example.com", "TR001", &SaveTemplateRequest{Name: "Checklist"})
	require.NoError(t, err)

	run, err := tplSvc.Instantiate(sess, "bob@example.com", "TRT001", &InstantiateRequest{
		Name: "Release 1.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "TR002", run.RunID)

	detail, err := runSvc.GetTestRun("TR002")
	require.NoError(t, err)
	require.Len(t, detail.Executions, 2)
	assert.Equal(t, "TC002", detail.Executions[0].CaseID)
	assert.Equal(t, "TC001", detail.Executions[1].CaseID)
	assert.Equal(t, models.ExecutionStatusNotRun, detail.Executions[0].Status)
}

func TestDeleteTemplate(t *testing.T) {
	tplSvc, runSvc, locks, db := setupTemplateService(t)
	seedTestCases(t, db, "TC001")
	sess := locks.Session("tab-1")

	_, err := runSvc.CreateTestRun(sess, "alice@example.com", &CreateTestRunRequest{
		Name:    "Release 1.0",
		CaseIDs: []string{"TC001"},
	})
	require.NoError(t, err)
	_, err = tplSvc.SaveFromRun("alice@example.com", "TR001", &SaveTemplateRequest{Name: "Checklist"})
	require.NoError(t, err)

	require.NoError(t, tplSvc.DeleteTemplate("TRT001"))

	_, err = tplSvc.GetTemplate("TRT001")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))

	err = tplSvc.DeleteTemplate("TRT001")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NotFound))
}
