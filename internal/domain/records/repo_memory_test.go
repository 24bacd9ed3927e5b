package records_test

import (
	"testing"

	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/domain/records/recordstest"
)

func TestMemoryRepository(t *testing.T) {
	recordstest.Run(t, func(t *testing.T) records.Repository {
		return records.NewMemoryRepository()
	})
}
