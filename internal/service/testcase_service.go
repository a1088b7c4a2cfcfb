package service

import (
	"strings"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/idgen"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
)

// TestCaseService manages test case definitions and components.
type TestCaseService interface {
	CreateTestCase(createdBy string, req *CreateTestCaseRequest) (*models.TestCase, error)
	UpdateTestCase(caseID string, req *UpdateTestCaseRequest) (*models.TestCase, error)
	DeleteTestCase(caseID string) error
	GetTestCase(caseID string) (*models.TestCase, error)
	ListTestCases(filter repository.TestCaseFilter, limit, offset int) ([]models.TestCase, int64, error)

	CreateComponent(req *ComponentRequest) (*models.Component, error)
	UpdateComponent(name string, req *ComponentRequest) (*models.Component, error)
	DeleteComponent(name string) error
	ListComponents() ([]models.Component, error)
}

type testCaseService struct {
	cases      repository.TestCaseRepository
	components repository.ComponentRepository
	ids        *idgen.Allocator
}

// NewTestCaseService creates a new test case service.
func NewTestCaseService(
	cases repository.TestCaseRepository,
	components repository.ComponentRepository,
	ids *idgen.Allocator,
) TestCaseService {
	return &testCaseService{
		cases:      cases,
		components: components,
		ids:        ids,
	}
}

// ===== Request DTOs =====

type CreateTestCaseRequest struct {
	Component      string          `json:"component" binding:"required"`
	Feature        string          `json:"feature"`
	TestType       models.TestType `json:"testType" binding:"required"`
	Priority       models.Priority `json:"priority"`
	Preconditions  string          `json:"preconditions"`
	TestSteps      string          `json:"testSteps"`
	ExpectedResult string          `json:"expectedResult"`
}

type UpdateTestCaseRequest struct {
	Component      string          `json:"component"`
	Feature        string          `json:"feature"`
	TestType       models.TestType `json:"testType"`
	Priority       models.Priority `json:"priority"`
	Preconditions  *string         `json:"preconditions"`
	TestSteps      *string         `json:"testSteps"`
	ExpectedResult *string         `json:"expectedResult"`
}

type ComponentRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// ===== Test Case Operations =====

func (s *testCaseService) CreateTestCase(createdBy string, req *CreateTestCaseRequest) (*models.TestCase, error) {
	if !models.ValidTestType(req.TestType) {
		return nil, apperrors.Newf(apperrors.Validation, "invalid test type %q", req.TestType)
	}
	if req.Priority == "" {
		req.Priority = models.PriorityP2
	}
	if !models.ValidPriority(req.Priority) {
		return nil, apperrors.Newf(apperrors.Validation, "invalid priority %q", req.Priority)
	}

	caseID, err := s.ids.Generate(idgen.TestCaseKind)
	if err != nil {
		return nil, err
	}

	tc := &models.TestCase{
		CaseID:         caseID,
		Component:      req.Component,
		Feature:        req.Feature,
		TestType:       req.TestType,
		Priority:       req.Priority,
		Preconditions:  req.Preconditions,
		TestSteps:      req.TestSteps,
		ExpectedResult: req.ExpectedResult,
		CreatedBy:      createdBy,
	}
	if err := s.cases.Create(tc); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to create test case", err)
	}
	return tc, nil
}

func (s *testCaseService) UpdateTestCase(caseID string, req *UpdateTestCaseRequest) (*models.TestCase, error) {
	tc, err := s.cases.FindByCaseID(caseID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test case", err)
	}
	if tc == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test case %s not found", caseID)
	}

	if req.Component != "" {
		tc.Component = req.Component
	}
	if req.Feature != "" {
		tc.Feature = req.Feature
	}
	if req.TestType != "" {
		if !models.ValidTestType(req.TestType) {
			return nil, apperrors.Newf(apperrors.Validation, "invalid test type %q", req.TestType)
		}
		tc.TestType = req.TestType
	}
	if req.Priority != "" {
		if !models.ValidPriority(req.Priority) {
			return nil, apperrors.Newf(apperrors.Validation, "invalid priority %q", req.Priority)
		}
		tc.Priority = req.Priority
	}
	if req.Preconditions != nil {
		tc.Preconditions = *req.Preconditions
	}
	if req.TestSteps != nil {
		tc.TestSteps = *req.TestSteps
	}
	if req.ExpectedResult != nil {
		tc.ExpectedResult = *req.ExpectedResult
	}

	if err := s.cases.Update(tc); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to update test case", err)
	}
	return tc, nil
}

func (s *testCaseService) DeleteTestCase(caseID string) error {
	tc, err := s.cases.FindByCaseID(caseID)
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to find test case", err)
	}
	if tc == nil {
		return apperrors.Newf(apperrors.NotFound, "test case %s not found", caseID)
	}
	// No cascade: execution records referencing the case stay in their runs.
	if err := s.cases.Delete(caseID); err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to delete test case", err)
	}
	return nil
}

func (s *testCaseService) GetTestCase(caseID string) (*models.TestCase, error) {
	tc, err := s.cases.FindByCaseID(caseID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find test case", err)
	}
	if tc == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "test case %s not found", caseID)
	}
	return tc, nil
}

func (s *testCaseService) ListTestCases(filter repository.TestCaseFilter, limit, offset int) ([]models.TestCase, int64, error) {
	return s.cases.FindAll(filter, limit, offset)
}

// ===== Component Operations =====

func (s *testCaseService) CreateComponent(req *ComponentRequest) (*models.Component, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Newf(apperrors.Validation, "component name must not be empty")
	}
	existing, err := s.components.FindByName(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to check component", err)
	}
	if existing != nil {
		return nil, apperrors.Newf(apperrors.Validation, "component %q already exists", name)
	}

	c := &models.Component{Name: name, Description: req.Description}
	if err := s.components.Create(c); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to create component", err)
	}
	return c, nil
}

func (s *testCaseService) UpdateComponent(name string, req *ComponentRequest) (*models.Component, error) {
	c, err := s.components.FindByName(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to find component", err)
	}
	if c == nil {
		return nil, apperrors.Newf(apperrors.NotFound, "component %q not found", name)
	}

	c.Description = req.Description
	if err := s.components.Update(c); err != nil {
		return nil, apperrors.Wrap(apperrors.Store, "failed to update component", err)
	}
	return c, nil
}

func (s *testCaseService) DeleteComponent(name string) error {
	c, err := s.components.FindByName(name)
	if err != nil {
		return apperrors.Wrap(apperrors.Store, "failed to find component", err)
	}
	if c == nil {
		return apperrors.Newf(apperrors.NotFound, "component %q not found", name)
	}
	return s.components.Delete(name)
}

func (s *testCaseService) ListComponents() ([]models.Component, error) {
	return s.components.FindAll()
}
