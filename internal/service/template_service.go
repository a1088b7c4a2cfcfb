package service

import (
	"strings"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/idgen"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"
)

// TemplateService manages reusable run templates: saving one from an
// existing run and instantiating new runs from it.
type TemplateService interface {
	SaveFromRun(createdBy, runID string, req *SaveTemplateRequest) (*models.TestRunTemplate, error)
	ListTemplates() ([]models.TestRunTemplate, error)
	GetTemplate(templateID string) (*TemplateDetail, error)
	DeleteTemplate(templateID string) error
	Instantiate(sess *runlock.Session, createdBy, templateID string, req *InstantiateRequest) (*models.TestRun, error)
}

type templateService struct {
	templates repository.TemplateRepository
	runs      repository.TestRunRepository
	runSvc    TestRunService
	execs     executionLister
	ids       *idgen.Allocator
}

// executionLister is the slice of the execution manager the template service
// needs (the ordered record listing of a run).
type executionLister interface {
	List(runID string) ([]models.TestCaseExecution, error)
}

// NewTemplateService creates a new template service.
func NewTemplateService(
	templates repository.TemplateRepository,
	runs repository.TestRunRepository,
	runSvc TestRunService,
	execs executionLister,
	ids *idgen.Allocator,
) TemplateService {
	return &templateService{
		templates: templates,
		runs:      runs,
		runSvc:    runSvc,
		execs:     execs,
		ids:       ids,
	}
}

// ===== Request DTOs =====

type SaveTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type InstantiateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// TemplateDetail bundles a template with its ordered case list.
type TemplateDetail struct {
	Template *models.TestRunTemplate      `json:"template"`
	Cases    []models.TestRunTemplateCase `json:"cases"`
}

// ===== Operations =====

// SaveFromRun captures a run's ordered case list as a template. Duplicate
// records in the source are collapsed to one entry per case.
func (s *templateService) SaveFromRun(createdBy, runID string, req *SaveTemplateRequest) (*models.TestRunTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.Newf(apperrors.Validation, "template name must not be empty")
	}

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

	templateID, err := s.ids.Generate(idgen.TemplateKind)
	if err != nil {
		return nil, err
	}

	tpl := &models.TestRunTemplate{
		TemplateID:  templateID,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   createdBy,
	}

	seen := make(map[string]bool, len(execs))
	var cases []models.TestRunTemplateCase
	for i := range execs {
		if seen[execs[i].CaseID] {
			continue
		}
		seen[execs[i].CaseID] = true
		cases = append(cases, models.TestRunTemplateCase{
			CaseID: execs[i].CaseID,
			Order:  execs[i].Order,
		})
	}

	if err := s.templates.Create(tpl, cases); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to save template", err)
	}
	return tpl, nil
}

func (s *templateService) ListTemplates() ([]models.TestRunTemplate, error) {
	return s.templates.FindAll()
}

func (s *templateService) GetTemplate(templateID string) (*TemplateDetail, error) {
	tpl, err := s.templates.FindByTemplateID(templateID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find template", err)
	}
	if tpl == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "template %s not found", templateID)
	}
	cases, err := s.templates.FindCases(templateID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to load template cases", err)
	}
	return &TemplateDetail{Template: tpl, Cases: cases}, nil
}

func (s *templateService) DeleteTemplate(templateID string) error {
	tpl, err := s.templates.FindByTemplateID(templateID)
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to find template", err)
	}
	if tpl == nil {
		return apperrors.Newf(apperrors.NotFound, "template %s not found", templateID)
	}
	return s.templates.Delete(templateID)
}

// Instantiate creates a new run carrying one Not Run execution per template
// case, in template order, through the regular run creation path.
func (s *templateService) Instantiate(sess *runlock.Session, createdBy, templateID string, req *InstantiateRequest) (*models.TestRun, error) {
	detail, err := s.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	caseIDs := make([]string, 0, len(detail.Cases))
	for _, c := range detail.Cases {
		caseIDs = append(caseIDs, c.CaseID)
	}

	return s.runSvc.CreateTestRun(sess, createdBy, &CreateTestRunRequest{
		Name:        req.Name,
		Description: req.Description,
		CaseIDs:     caseIDs,
	})
}
