package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/enum"
	domainRepo "github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// statsRowID is the primary key of the single lifetime counters row.
const statsRowID = "default"

type printJobRepository struct {
	db *gorm.DB
}

// NewPrintJobRepository creates a new print job repository
func NewPrintJobRepository(db *gorm.DB) domainRepo.PrintJobRepository {
	return &printJobRepository{db: db}
}

func (r *printJobRepository) Save(ctx context.Context, job *entity.PrintJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *printJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.PrintJob{ID: id}).Error
}

func (r *printJobRepository) ListActive(ctx context.Context) ([]entity.PrintJob, error) {
	var jobs []entity.PrintJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enum.PrintJobStatus{
			enum.PrintJobStatusPending,
			enum.PrintJobStatusPrinting,
			enum.PrintJobStatusFailed,
		}).
		Order("queue_seq ASC").
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *printJobRepository) List(ctx context.Context, filter domainRepo.PrintJobFilter, params *pagination.Params) ([]entity.PrintJob, int64, error) {
	var jobs []entity.PrintJob
	var total int64

	query := r.historyQuery(ctx, filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.historyQuery(ctx, filter).
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PerPage).
		Find(&jobs).Error

	return jobs, total, err
}

func (r *printJobRepository) historyQuery(ctx context.Context, filter domainRepo.PrintJobFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entity.PrintJob{}).Scopes(TenantScope(ctx))
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BillNumber != "" {
		query = query.Where("bill_number = ?", filter.BillNumber)
	}
	return query
}

func (r *printJobRepository) LoadStats(ctx context.Context) (*entity.PrintQueueStatsRecord, error) {
	var rec entity.PrintQueueStatsRecord
	err := r.db.WithContext(ctx).Where(&entity.PrintQueueStatsRecord{ID: statsRowID}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *printJobRepository) SaveStats(ctx context.Context, stats *entity.PrintQueueStatsRecord) error {
	stats.ID = statsRowID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_printed", "total_failed", "total_retries", "updated_at"}),
	}).Create(stats).Error
}
