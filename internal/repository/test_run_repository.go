package repository

import (
	"fmt"

	"github.com/itskevin-zz/testframe/internal/models"

	"gorm.io/gorm"
)

// TestRunRepository handles test run data access.
type TestRunRepository interface {
	Create(run *models.TestRun) error
	Update(run *models.TestRun) error
	Delete(runID string) error
	FindByRunID(runID string) (*models.TestRun, error)
	FindAll(limit, offset int) ([]models.TestRun, int64, error)
	// NameTaken reports whether any run already uses the name,
	// case-insensitively. Advisory only: it is a scan, not a constraint.
	NameTaken(name string) (bool, error)
}

type testRunRepo struct {
	db *gorm.DB
}

// NewTestRunRepository creates a new repository.
func NewTestRunRepository(db *gorm.DB) TestRunRepository {
	return &testRunRepo{db: db}
}

func (r *testRunRepo) Create(run *models.TestRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create test run: %w", err)
	}
	return nil
}

func (r *testRunRepo) Update(run *models.TestRun) error {
	if err := r.db.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update test run: %w", err)
	}
	return nil
}

func (r *testRunRepo) Delete(runID string) error {
	if err := r.db.Where("run_id = ?", runID).Delete(&models.TestRun{}).Error; err != nil {
		return fmt.Errorf("failed to delete test run: %w", err)
	}
	return nil
}

func (r *testRunRepo) FindByRunID(runID string) (*models.TestRun, error) {
	var run models.TestRun
	err := r.db.Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query test run: %w", err)
	}
	return &run, nil
}

func (r *testRunRepo) FindAll(limit, offset int) ([]models.TestRun, int64, error) {
	var total int64
	if err := r.db.Model(&models.TestRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count test runs: %w", err)
	}

	var runs []models.TestRun
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query test runs: %w", err)
	}
	return runs, total, nil
}

func (r *testRunRepo) NameTaken(name string) (bool, error) {
	var count int64
	err := r.db.Model(&models.TestRun{}).
		Where("LOWER(name) = LOWER(?)", name).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check run name: %w", err)
	}
	return count > 0, nil
}
