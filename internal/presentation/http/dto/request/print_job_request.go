package request

import (
	"github.com/sangkips/gstbill-desk/internal/domain/enum"
	"github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
)

// PrintJobFilterRequest represents print job history filter parameters
type PrintJobFilterRequest struct {
	Status     string `form:"status" binding:"omitempty,oneof=pending printing completed failed"`
	BillNumber string `form:"bill_number" binding:"omitempty,max=100"`
	Page       int    `form:"page"`
	PerPage    int    `form:"per_page"`
}

// Filter converts the query into a repository filter.
func (r *PrintJobFilterRequest) Filter() (repository.PrintJobFilter, error) {
	filter := repository.PrintJobFilter{BillNumber: r.BillNumber}
	if r.Status != "" {
		status, err := enum.ParsePrintJobStatus(r.Status)
		if err != nil {
			return filter, apperror.NewBadRequestError("Invalid status filter")
		}
		filter.Status = &status
	}
	return filter, nil
}

// Pagination returns the requested page.
func (r *PrintJobFilterRequest) Pagination() *pagination.Params {
	return &pagination.Params{Page: r.Page, PerPage: r.PerPage}
}
