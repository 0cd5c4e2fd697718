package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/enum"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
)

// PrintJobFilter narrows a print job history listing
type PrintJobFilter struct {
	Status     *enum.PrintJobStatus
	BillNumber string
}

// PrintJobRepository defines the interface for print job persistence
type PrintJobRepository interface {
	// Save inserts or updates a job
	Save(ctx context.Context, job *entity.PrintJob) error
	// Delete removes a job
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive returns every pending, printing or failed job across tenants, oldest queue position first
	ListActive(ctx context.Context) ([]entity.PrintJob, error)
	// List returns the tenant's job history, newest first
	List(ctx context.Context, filter PrintJobFilter, params *pagination.Params) ([]entity.PrintJob, int64, error)
	// LoadStats returns the persisted lifetime counters, or nil when none are stored
	LoadStats(ctx context.Context) (*entity.PrintQueueStatsRecord, error)
	// SaveStats stores the lifetime counters
	SaveStats(ctx context.Context, stats *entity.PrintQueueStatsRecord) error
}
