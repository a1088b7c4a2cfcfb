package models

import (
	"time"
)

// RunStatus is the lifecycle status of a test run.
type RunStatus string

const (
	RunStatusNotStarted RunStatus = "Not Started"
	RunStatusInProgress RunStatus = "In Progress"
	RunStatusCompleted  RunStatus = "Completed"
)

// ValidRunStatus reports whether s is one of the known run statuses.
func ValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusNotStarted, RunStatusInProgress, RunStatusCompleted:
		return true
	}
	return false
}

// ExecutionStatus is the recorded outcome of one test case within a run.
type ExecutionStatus string

const (
	ExecutionStatusPass    ExecutionStatus = "Pass"
	ExecutionStatusFail    ExecutionStatus = "Fail"
	ExecutionStatusBlocked ExecutionStatus = "Blocked"
	ExecutionStatusSkip    ExecutionStatus = "Skip"
	ExecutionStatusNotRun  ExecutionStatus = "Not Run"
)

// ValidExecutionStatus reports whether s is one of the known execution statuses.
func ValidExecutionStatus(s ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPass, ExecutionStatusFail, ExecutionStatusBlocked,
		ExecutionStatusSkip, ExecutionStatusNotRun:
		return true
	}
	return false
}

// TestRun is a named collection of test cases executed together.
// Name uniqueness is advisory only: it is checked case-insensitively before
// create/duplicate but the table carries no uniqueness constraint on it.
type TestRun struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	RunID       string    `gorm:"uniqueIndex;size:255;not null" json:"runId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Status      RunStatus `gorm:"size:50;default:'Not Started';index" json:"status"`
	CreatedBy   string    `gorm:"size:255" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for TestRun.
func (TestRun) TableName() string {
	return "test_runs"
}

// TestCaseExecution is the result of one test case within one run.
//
// Intended invariant: at most one row per (RunID, CaseID) pair. The table
// deliberately carries no unique index on the pair; the invariant is defended
// procedurally on every create and repaired by the cleanup utilities.
type TestCaseExecution struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RunID         string          `gorm:"size:255;not null;index" json:"testRunId"`
	CaseID        string          `gorm:"size:255;not null;index" json:"testCaseId"`
	ActualResult  string          `gorm:"type:text" json:"actualResult"`
	Status        ExecutionStatus `gorm:"size:50;default:'Not Run';index" json:"status"`
	TestedBy      string          `gorm:"size:255" json:"testedBy"`
	ExecutionDate time.Time       `json:"executionDate"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	// "order" is a reserved word, so the column is sort_order.
	Order int `gorm:"column:sort_order;default:0;index" json:"order"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName sets the table name for TestCaseExecution.
func (TestCaseExecution) TableName() string {
	return "test_case_executions"
}
