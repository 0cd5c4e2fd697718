package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	exportSheet   = "Print Jobs"
	exportPerPage = 100
	// exportMaxRows caps a single workbook.
	exportMaxRows = 10000
)

var exportHeadings = []interface{}{
	"Job ID", "Bill Number", "Status", "Exhausted", "Retry Count", "Attempts",
	"Printer", "Error", "Created At", "Completed At", "Failed At",
}

// ExportJobs renders the tenant's print history as an xlsx workbook.
func (s *PrintQueueService) ExportJobs(ctx context.Context, filter repository.PrintJobFilter) ([]byte, error) {
	if s.repo == nil {
		return nil, apperror.NewServiceUnavailableError("Print history is not available")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeadings); err != nil {
		return nil, err
	}

	row := 2
	params := &pagination.Params{Page: 1, PerPage: exportPerPage}
	for row-2 < exportMaxRows {
		jobs, total, err := s.repo.List(ctx, filter, params)
		if err != nil {
			s.logger.Error("failed to export print jobs", zap.Error(err))
			return nil, apperror.Internal(err)
		}
		for i := range jobs {
			if row-2 >= exportMaxRows {
				break
			}
			cells := exportRow(&jobs[i])
			if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", row), &cells); err != nil {
				return nil, err
			}
			row++
		}
		if len(jobs) < params.PerPage || int64(params.Page*params.PerPage) >= total {
			break
		}
		params.Page++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(job *entity.PrintJob) []interface{} {
	return []interface{}{
		job.ID.String(),
		job.BillNumber,
		job.Status.String(),
		job.Exhausted,
		job.RetryCount,
		job.Attempts,
		job.Printer,
		job.Error,
		job.CreatedAt.Format("2006-01-02 15:04:05"),
		formatOptionalTime(job.CompletedAt),
		formatOptionalTime(job.FailedAt),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
