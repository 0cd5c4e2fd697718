package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/domain/enum"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PrintJob is one request to print a finalized bill. The print queue
// service is its only writer.
type PrintJob struct {
	ID         uuid.UUID           `gorm:"size:36;primaryKey" json:"id"`
	TenantID   uuid.UUID           `gorm:"size:36;index" json:"tenantId"`
	UserID     uuid.UUID           `gorm:"size:36;index" json:"userId"`
	BillNumber string              `gorm:"size:100;index" json:"billNumber,omitempty"`
	Status     enum.PrintJobStatus `gorm:"default:0;index" json:"status"`
	// Exhausted marks a failed job whose automatic retries are used up.
	Exhausted  bool           `gorm:"default:false" json:"exhausted"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	RetryCount int            `gorm:"default:0" json:"retryCount"`
	Attempts   int            `gorm:"default:0" json:"attempts"`
	Copies     int            `gorm:"default:1" json:"copies"`
	Printer    string         `gorm:"size:255" json:"printer,omitempty"`
	Bill       datatypes.JSON `json:"billData"`
	// QueueSeq orders pending jobs; it is reassigned whenever a job re-enters the queue.
	QueueSeq    int64      `gorm:"index" json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
}

// BeforeCreate generates a UUID before creating a new print job
func (j *PrintJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PrintJob model
func (PrintJob) TableName() string {
	return "print_jobs"
}

// IsActive reports whether the job still belongs to the live queue.
func (j *PrintJob) IsActive() bool {
	return j.Status != enum.PrintJobStatusCompleted
}

// Clone returns a copy that shares no mutable state with j.
func (j *PrintJob) Clone() *PrintJob {
	c := *j
	if j.Bill != nil {
		c.Bill = append(datatypes.JSON(nil), j.Bill...)
	}
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.FailedAt = cloneTime(j.FailedAt)
	c.NextRetryAt = cloneTime(j.NextRetryAt)
	return &c
}

// ToSummary projects the job into the shape shown in the print status panel.
func (j *PrintJob) ToSummary() PrintJobSummary {
	return PrintJobSummary{
		ID:          j.ID.String(),
		Status:      j.Status,
		BillNumber:  j.BillNumber,
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		Exhausted:   j.Exhausted,
		CreatedAt:   j.CreatedAt,
		NextRetryAt: cloneTime(j.NextRetryAt),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// PrintJobSummary is the per-job payload of queue snapshots and job update events.
type PrintJobSummary struct {
	ID          string              `json:"id"`
	Status      enum.PrintJobStatus `json:"status"`
	BillNumber  string              `json:"billNumber,omitempty"`
	Error       string              `json:"error,omitempty"`
	RetryCount  int                 `json:"retryCount"`
	Exhausted   bool                `json:"exhausted"`
	CreatedAt   time.Time           `json:"createdAt"`
	NextRetryAt *time.Time          `json:"nextRetryAt,omitempty"`
}

// PrintQueueStats are lifetime counters that outlive individual jobs.
type PrintQueueStats struct {
	TotalPrinted int64 `json:"totalPrinted"`
	TotalFailed  int64 `json:"totalFailed"`
	TotalRetries int64 `json:"totalRetries"`
}

// PrintQueueJobs holds the bounded job lists of a queue snapshot.
type PrintQueueJobs struct {
	Pending []PrintJobSummary `json:"pending"`
	Failed  []PrintJobSummary `json:"failed"`
}

// PrintQueueStatus is a point-in-time snapshot of the print queue.
type PrintQueueStatus struct {
	Pending        int             `json:"pending"`
	Failed         int             `json:"failed"`
	Exhausted      int             `json:"exhausted"`
	Completed      int             `json:"completed"`
	IsProcessing   bool            `json:"isProcessing"`
	DefaultPrinter *string         `json:"defaultPrinter"`
	Stats          PrintQueueStats `json:"stats"`
	Jobs           PrintQueueJobs  `json:"jobs"`
}

// PrintQueueStatsRecord persists the lifetime counters, one row per host.
type PrintQueueStatsRecord struct {
	ID           string `gorm:"size:64;primaryKey"`
	TotalPrinted int64  `gorm:"default:0"`
	TotalFailed  int64  `gorm:"default:0"`
	TotalRetries int64  `gorm:"default:0"`
	UpdatedAt    time.Time
}

// TableName returns the table name for PrintQueueStatsRecord
func (PrintQueueStatsRecord) TableName() string {
	return "print_queue_stats"
}

// BillData is the bill payload submitted for printing.
type BillData struct {
	BillNumber         string         `json:"billNumber" binding:"omitempty,max=100"`
	Date               *time.Time     `json:"date,omitempty"`
	Cashier            string         `json:"cashier,omitempty"`
	CustomerName       string         `json:"customer_name"`
	CustomerPhone      string         `json:"customer_phone"`
	CustomerGSTIN      string         `json:"customer_gstin" binding:"omitempty,gstin"`
	Items              []BillItem     `json:"items" binding:"required,min=1,dive"`
	PaymentSplits      []PaymentSplit `json:"payment_splits"`
	DiscountPercentage float64        `json:"discountPercentage" binding:"gte=0,lte=100"`
	AmountReceived     float64        `json:"amountReceived" binding:"gte=0"`
	Copies             int            `json:"copies" binding:"omitempty,min=1,max=5"`
}

// CopyCount returns how many receipts to print, defaulting to one.
func (b *BillData) CopyCount() int {
	if b.Copies < 1 {
		return 1
	}
	return b.Copies
}

// AddPrintJobResult is returned when a job is accepted by the queue.
type AddPrintJobResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

// RetryResult reports how many failed jobs were re-queued.
type RetryResult struct {
	RetriedCount int `json:"retriedCount"`
}

// PrinterStatus describes the configured printer and whether it is reachable.
type PrinterStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Target     string `json:"target,omitempty"`
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
}
