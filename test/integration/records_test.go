//go:build integration

package integration

import (
	"testing"

	"github.com/phr/phr/internal/domain/records"
	"github.com/phr/phr/internal/domain/records/recordstest"
)

func TestRecordsPG(t *testing.T) {
	recordstest.Run(t, func(t *testing.T) records.Repository {
		truncate(t, "clinical_records")
		return records.NewPGRepository(globalPool)
	})
}
