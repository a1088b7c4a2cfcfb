// Package idgen allocates monotonically increasing human-readable ids such
// as TR001 or TC042, backed by a durable counter row per entity kind.
package idgen

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/itskevin-zz/testframe/internal/apperrors"
	"github.com/itskevin-zz/testframe/internal/models"

	"gorm.io/gorm"
)

// maxAttempts bounds the retry loop when an allocated id collides with a
// document that bypassed the counter (e.g. created manually).
const maxAttempts = 5

// Kind describes one id namespace: which counter row backs it, how the id is
// formatted and which table/column to probe for collisions.
type Kind struct {
	CounterKey string
	Prefix     string
	Width      int
	Table      string
	IDColumn   string
}

var (
	// TestRunKind allocates TRnnn ids for test runs.
	TestRunKind = Kind{
		CounterKey: "testRunCounter",
		Prefix:     "TR",
		Width:      3,
		Table:      models.TestRun{}.TableName(),
		IDColumn:   "run_id",
	}
	// TestCaseKind allocates TCnnn ids for test cases.
	TestCaseKind = Kind{
		CounterKey: "testCaseCounter",
		Prefix:     "TC",
		Width:      3,
		Table:      models.TestCase{}.TableName(),
		IDColumn:   "case_id",
	}
	// TemplateKind allocates TRTnnn ids for run templates.
	TemplateKind = Kind{
		CounterKey: "testRunTemplateCounter",
		Prefix:     "TRT",
		Width:      3,
		Table:      models.TestRunTemplate{}.TableName(),
		IDColumn:   "template_id",
	}
)

// Allocator hands out ids. Safe for concurrent use; the counter advance runs
// inside a storage transaction so two allocators never see the same value.
type Allocator struct {
	db *gorm.DB
}

// NewAllocator creates an allocator over the given database.
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// Generate returns the next id for the kind, e.g. TR007.
//
// The counter is seeded from the newest existing id in the target table, so
// rows created before the counter row existed are never collided with. After
// each transactional increment the candidate is probed against the table and
// the allocation retried on collision, up to maxAttempts.
func (a *Allocator) Generate(kind Kind) (string, error) {
	seed, err := a.seed(kind)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		value, err := a.nextValue(kind, seed)
		if err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s%0*d", kind.Prefix, kind.Width, value)

		taken, err := a.exists(kind, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", apperrors.Newf(apperrors.Allocation,
		"id allocation for %s exhausted after %d attempts", kind.Prefix, maxAttempts)
}

// seed derives the starting counter value from the newest row's id suffix.
// Returns 0 for an empty table or an unparsable id.
func (a *Allocator) seed(kind Kind) (int, error) {
	var ids []string
	err := a.db.Table(kind.Table).
		Order("created_at DESC").
		Limit(1).
		Pluck(kind.IDColumn, &ids).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Store, "failed to seed id counter", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return trailingNumber(ids[0]), nil
}

// nextValue advances the counter row transactionally and returns the new
// value. A missing counter row is initialized from the seed.
func (a *Allocator) nextValue(kind Kind, seed int) (int, error) {
	var value int
	err := a.db.Transaction(func(tx *gorm.DB) error {
		var counter models.AppMetadata
		err := tx.Where("key = ?", kind.CounterKey).First(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			counter = models.AppMetadata{Key: kind.CounterKey, Current: seed}
		} else if err != nil {
			return err
		}

		counter.Current++
		value = counter.Current
		return tx.Save(&counter).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Store, "failed to advance id counter", err)
	}
	return value, nil
}

func (a *Allocator) exists(kind Kind, id string) (bool, error) {
	var count int64
	err := a.db.Table(kind.Table).
		Where(fmt.Sprintf("%s = ?", kind.IDColumn), id).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.Store, "failed to probe id", err)
	}
	return count > 0, nil
}

// trailingNumber parses the run of digits at the end of s, 0 if there is none.
func trailingNumber(s string) int {
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0
	}
	return n
}
