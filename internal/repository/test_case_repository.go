package repository

import (
	"fmt"

	"github.com/itskevin-zz/testframe/internal/models"

	"gorm.io/gorm"
)

// TestCaseFilter narrows a test case listing.
type TestCaseFilter struct {
	Component string
	TestType  models.TestType
	Priority  models.Priority
}

// TestCaseRepository handles test case data access.
type TestCaseRepository interface {
	Create(tc *models.TestCase) error
	Update(tc *models.TestCase) error
	Delete(caseID string) error
	FindByCaseID(caseID string) (*models.TestCase, error)
	FindAll(filter TestCaseFilter, limit, offset int) ([]models.TestCase, int64, error)
}

type testCaseRepo struct {
	db *gorm.DB
}

// NewTestCaseRepository creates a new repository.
func NewTestCaseRepository(db *gorm.DB) TestCaseRepository {
	return &testCaseRepo{db: db}
}

func (r *testCaseRepo) Create(tc *models.TestCase) error {
	if err := r.db.Create(tc).Error; err != nil {
		return fmt.Errorf("failed to create test case: %w", err)
	}
	return nil
}

func (r *testCaseRepo) Update(tc *models.TestCase) error {
	if err := r.db.Save(tc).Error; err != nil {
		return fmt.Errorf("failed to update test case: %w", err)
	}
	return nil
}

func (r *testCaseRepo) Delete(caseID string) error {
	if err := r.db.Where("case_id = ?", caseID).Delete(&models.TestCase{}).Error; err != nil {
		return fmt.Errorf("failed to delete test case: %w", err)
	}
	return nil
}

func (r *testCaseRepo) FindByCaseID(caseID string) (*models.TestCase, error) {
	var tc models.TestCase
	err := r.db.Where("case_id = ?", caseID).First(&tc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query test case: %w", err)
	}
	return &tc, nil
}

func (r *testCaseRepo) FindAll(filter TestCaseFilter, limit, offset int) ([]models.TestCase, int64, error) {
	query := r.db.Model(&models.TestCase{})
	if filter.Component != "" {
		query = query.Where("component = ?", filter.Component)
	}
	if filter.TestType != "" {
		query = query.Where("test_type = ?", filter.TestType)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count test cases: %w", err)
	}

	var cases []models.TestCase
	query = query.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&cases).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query test cases: %w", err)
	}
	return cases, total, nil
}

// ComponentRepository handles component data access.
type ComponentRepository interface {
	Create(c *models.Component) error
	Update(c *models.Component) error
	Delete(name string) error
	FindByName(name string) (*models.Component, error)
	FindAll() ([]models.Component, error)
}

type componentRepo struct {
	db *gorm.DB
}

// NewComponentRepository creates a new repository.
func NewComponentRepository(db *gorm.DB) ComponentRepository {
	return &componentRepo{db: db}
}

func (r *componentRepo) Create(c *models.Component) error {
	if err := r.db.Create(c).Error; err != nil {
		return fmt.Errorf("failed to create component: %w", err)
	}
	return nil
}

func (r *componentRepo) Update(c *models.Component) error {
	if err := r.db.Save(c).Error; err != nil {
		return fmt.Errorf("failed to update component: %w", err)
	}
	return nil
}

func (r *componentRepo) Delete(name string) error {
	if err := r.db.Where("name = ?", name).Delete(&models.Component{}).Error; err != nil {
		return fmt.Errorf("failed to delete component: %w", err)
	}
	return nil
}

func (r *componentRepo) FindByName(name string) (*models.Component, error) {
	var c models.Component
	err := r.db.Where("name = ?", name).First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query component: %w", err)
	}
	return &c, nil
}

func (r *componentRepo) FindAll() ([]models.Component, error) {
	var components []models.Component
	if err := r.db.Order("name ASC").Find(&components).Error; err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	return components, nil
}
