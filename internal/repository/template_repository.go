package repository

import (
	"fmt"

	"github.com/itskevin-zz/testframe/internal/models"

	"gorm.io/gorm"
)

// TemplateRepository handles run template data access.
type TemplateRepository interface {
	Create(tpl *models.TestRunTemplate, cases []models.TestRunTemplateCase) error
	Delete(templateID string) error
	FindByTemplateID(templateID string) (*models.TestRunTemplate, error)
	FindAll() ([]models.TestRunTemplate, error)
	FindCases(templateID string) ([]models.TestRunTemplateCase, error)
}

type templateRepo struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new repository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(tpl *models.TestRunTemplate, cases []models.TestRunTemplateCase) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tpl).Error; err != nil {
			return err
		}
		for i := range cases {
			cases[i].TemplateID = tpl.TemplateID
		}
		if len(cases) > 0 {
			if err := tx.Create(&cases).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *templateRepo) Delete(templateID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).
			Delete(&models.TestRunTemplateCase{}).Error; err != nil {
			return err
		}
		return tx.Where("template_id = ?", templateID).
			Delete(&models.TestRunTemplate{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

func (r *templateRepo) FindByTemplateID(templateID string) (*models.TestRunTemplate, error) {
	var tpl models.TestRunTemplate
	err := r.db.Where("template_id = ?", templateID).First(&tpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepo) FindAll() ([]models.TestRunTemplate, error) {
	var templates []models.TestRunTemplate
	if err := r.db.Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	return templates, nil
}

func (r *templateRepo) FindCases(templateID string) ([]models.TestRunTemplateCase, error) {
	var cases []models.TestRunTemplateCase
	err := r.db.Where("template_id = ?", templateID).
		Order("sort_order ASC").
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query template cases: %w", err)
	}
	return cases, nil
}
