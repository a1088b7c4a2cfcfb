package repository

import (
	"fmt"

	"github.com/itskevin-zz/testframe/internal/models"

	"gorm.io/gorm"
)

// ExecutionRepository handles execution record data access.
//
// Listing order everywhere is sort_order ascending with execution_date
// descending as the tie-break: "order" is the authoritative display sequence,
// newest activity surfaces first when order collides.
type ExecutionRepository interface {
	Create(exec *models.TestCaseExecution) error
	// CreateIfAbsent inserts exec unless a record for the same
	// (run, case) pair already exists, in which case that record is
	// returned instead and nothing is written. Check and insert run in one
	// transaction so concurrent calls for the same pair cannot both insert.
	CreateIfAbsent(exec *models.TestCaseExecution) (*models.TestCaseExecution, error)
	UpdateFields(id uint, fields map[string]interface{}) error
	Delete(id uint) error
	DeleteByRunID(runID string) error
	FindByID(id uint) (*models.TestCaseExecution, error)
	FindByRunID(runID string) ([]models.TestCaseExecution, error)
	FindByCaseID(caseID string) ([]models.TestCaseExecution, error)
	FindByRunAndCase(runID, caseID string) (*models.TestCaseExecution, error)
	DistinctRunIDs() ([]string, error)
}

type executionRepo struct {
	db *gorm.DB
}

// NewExecutionRepository creates a new repository.
func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepo{db: db}
}

func (r *executionRepo) Create(exec *models.TestCaseExecution) error {
	if err := r.db.Create(exec).Error; err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}
	return nil
}

func (r *executionRepo) CreateIfAbsent(exec *models.TestCaseExecution) (*models.TestCaseExecution, error) {
	var existing *models.TestCaseExecution
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var found models.TestCaseExecution
		err := tx.Where("run_id = ? AND case_id = ?", exec.RunID, exec.CaseID).
			Order("sort_order ASC").
			Order("execution_date DESC").
			First(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(exec).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}
	return existing, nil
}

func (r *executionRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	result := r.db.Model(&models.TestCaseExecution{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update execution record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *executionRepo) Delete(id uint) error {
	if err := r.db.Delete(&models.TestCaseExecution{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}
	return nil
}

func (r *executionRepo) DeleteByRunID(runID string) error {
	if err := r.db.Where("run_id = ?", runID).Delete(&models.TestCaseExecution{}).Error; err != nil {
		return fmt.Errorf("failed to delete execution records: %w", err)
	}
	return nil
}

func (r *executionRepo) FindByID(id uint) (*models.TestCaseExecution, error) {
	var exec models.TestCaseExecution
	err := r.db.First(&exec, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}
	return &exec, nil
}

func (r *executionRepo) FindByRunID(runID string) ([]models.TestCaseExecution, error) {
	var execs []models.TestCaseExecution
	err := r.db.Where("run_id = ?", runID).
		Order("sort_order ASC").
		Order("execution_date DESC").
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	return execs, nil
}

func (r *executionRepo) FindByCaseID(caseID string) ([]models.TestCaseExecution, error) {
	var execs []models.TestCaseExecution
	err := r.db.Where("case_id = ?", caseID).
		Order("sort_order ASC").
		Order("execution_date DESC").
		Find(&execs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	return execs, nil
}

func (r *executionRepo) FindByRunAndCase(runID, caseID string) (*models.TestCaseExecution, error) {
	var exec models.TestCaseExecution
	err := r.db.Where("run_id = ? AND case_id = ?", runID, caseID).
		Order("sort_order ASC").
		Order("execution_date DESC").
		First(&exec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}
	return &exec, nil
}

func (r *executionRepo) DistinctRunIDs() ([]string, error) {
	var runIDs []string
	err := r.db.Model(&models.TestCaseExecution{}).
		Distinct("run_id").
		Pluck("run_id", &runIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query run ids: %w", err)
	}
	return runIDs, nil
}
