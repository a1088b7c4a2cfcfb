package models

import (
	"time"
)

// TestType classifies what kind of testing a case performs.
type TestType string

const (
	TestTypeFunctional  TestType = "Functional"
	TestTypeIntegration TestType = "Integration"
	TestTypePerformance TestType = "Performance"
	TestTypeSecurity    TestType = "Security"
	TestTypeRegression  TestType = "Regression"
	TestTypeSmoke       TestType = "Smoke"
)

// ValidTestType reports whether t is one of the known test types.
func ValidTestType(t TestType) bool {
	switch t {
	case TestTypeFunctional, TestTypeIntegration, TestTypePerformance,
		TestTypeSecurity, TestTypeRegression, TestTypeSmoke:
		return true
	}
	return false
}

// Priority ranks how important a test case is.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// TestCase is a manually executed test case definition.
type TestCase struct {
	ID             uint     `gorm:"primaryKey" json:"-"`
	CaseID         string   `gorm:"uniqueIndex;size:255;not null" json:"caseId"`
	Component      string   `gorm:"size:255;not null;index" json:"component"`
	Feature        string   `gorm:"size:255" json:"feature"`
	TestType       TestType `gorm:"size:50;not null;index" json:"testType"`
	Priority       Priority `gorm:"size:10;index" json:"priority"`
	Preconditions  string   `gorm:"type:text" json:"preconditions,omitempty"` // markdown
	TestSteps      string   `gorm:"type:text" json:"testSteps,omitempty"`     // markdown
	ExpectedResult string   `gorm:"type:text" json:"expectedResult,omitempty"`
	CreatedBy      string   `gorm:"size:255" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for TestCase.
func (TestCase) TableName() string {
	return "test_cases"
}

// Component groups test cases by the part of the product they cover.
type Component struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Name        string `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for Component.
func (Component) TableName() string {
	return "components"
}
