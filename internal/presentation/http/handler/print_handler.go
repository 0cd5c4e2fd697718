package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/gstbill-desk/internal/application/service"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/dto/request"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/dto/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PrintHandler handles printer and print job HTTP requests.
type PrintHandler struct {
	queue *service.PrintQueueService
}

// NewPrintHandler creates a new print handler.
func NewPrintHandler(queue *service.PrintQueueService) *PrintHandler {
	return &PrintHandler{queue: queue}
}

// GetPrinterStatus returns the configured printer and whether it answers.
func (h *PrintHandler) GetPrinterStatus(c *gin.Context) {
	status := h.queue.PrinterStatus(c.Request.Context())
	response.OK(c, "Printer status retrieved", status)
}

// TestPrint queues a sample receipt.
func (h *PrintHandler) TestPrint(c *gin.Context) {
	receipt, job, err := h.queue.TestPrint(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Test receipt queued", gin.H{
		"receipt": receipt,
		"job":     job,
	})
}

// CreatePrintJob queues a bill for printing.
func (h *PrintHandler) CreatePrintJob(c *gin.Context) {
	var bill entity.BillData
	if err := c.ShouldBindJSON(&bill); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.queue.AddPrintJob(c.Request.Context(), &bill)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Print job queued", result)
}

// GetQueue returns the live queue snapshot.
func (h *PrintHandler) GetQueue(c *gin.Context) {
	status, err := h.queue.GetPrintQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Print queue retrieved", status)
}

// List returns the tenant's print job history.
func (h *PrintHandler) List(c *gin.Context) {
	var req request.PrintJobFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	filter, err := req.Filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.queue.ListJobs(c.Request.Context(), filter, req.Pagination())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Print jobs retrieved successfully", result)
}

// Export downloads the tenant's print job history as an xlsx workbook.
func (h *PrintHandler) Export(c *gin.Context) {
	var req request.PrintJobFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	filter, err := req.Filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.queue.ExportJobs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("print-jobs-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
