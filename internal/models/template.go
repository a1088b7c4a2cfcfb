package models

import (
	"time"
)

// TestRunTemplate is a reusable ordered selection of test cases from which
// new runs can be instantiated.
type TestRunTemplate struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	TemplateID  string `gorm:"uniqueIndex;size:255;not null" json:"templateId"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	CreatedBy   string `gorm:"size:255" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for TestRunTemplate.
func (TestRunTemplate) TableName() string {
	return "test_run_templates"
}

// TestRunTemplateCase is one ordered case entry inside a template.
type TestRunTemplateCase struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	TemplateID string `gorm:"size:255;not null;index" json:"templateId"`
	CaseID     string `gorm:"size:255;not null" json:"testCaseId"`
	Order      int    `gorm:"column:sort_order;default:0" json:"order"`
}

// TableName sets the table name for TestRunTemplateCase.
func (TestRunTemplateCase) TableName() string {
	return "test_run_template_cases"
}
