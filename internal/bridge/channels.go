package bridge

import (
	"context"

	"github.com/sangkips/gstbill-desk/internal/domain/entity"
)

// Channel names accepted from the billing tab.
const (
	ChannelAddPrintJob       = "addPrintJob"
	ChannelGetPrintQueue     = "getPrintQueue"
	ChannelRetryFailedJobs   = "retryFailedJobs"
	ChannelClearPrintQueue   = "clearPrintQueue"
	ChannelGetPrinterStatus  = "getPrinterStatus"
	ChannelLoadDraft         = "loadDraft"
	ChannelSaveDraft         = "saveDraft"
	ChannelAutoSaveDraft     = "autoSaveDraft"
	ChannelClearDraft        = "clearDraft"
	ChannelHasDraft          = "hasDraft"
	ChannelGetDraftAge       = "getDraftAge"
	ChannelHasUnsavedChanges = "hasUnsavedChanges"
	ChannelFlushDraft        = "flushDraft"
)

// PrintQueue is the print queue as seen by the bridge.
type PrintQueue interface {
	AddPrintJob(ctx context.Context, bill *entity.BillData) (*entity.AddPrintJobResult, error)
	GetPrintQueue(ctx context.Context) (*entity.PrintQueueStatus, error)
	RetryFailedJobs(ctx context.Context) (*entity.RetryResult, error)
	ClearPrintQueue(ctx context.Context) (bool, error)
	PrinterStatus(ctx context.Context) *entity.PrinterStatus
}

// Drafts is the draft persistence manager as seen by the bridge. Every call
// is scoped to the caller in ctx.
type Drafts interface {
	LoadDraft(ctx context.Context) *entity.DraftBill
	SaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) bool
	AutoSaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string)
	ClearDraft(ctx context.Context) bool
	HasDraft(ctx context.Context) bool
	GetDraftAge(ctx context.Context) *int
	HasUnsavedChanges(ctx context.Context) bool
	FlushDraft(ctx context.Context) bool
}

// SaveDraftRequest is the payload of saveDraft and autoSaveDraft.
type SaveDraftRequest struct {
	BillTabs    []entity.BillTab `json:"billTabs"`
	ActiveTabID string           `json:"activeTabId"`
}

// AutoSaveResult acknowledges a scheduled auto-save.
type AutoSaveResult struct {
	Scheduled bool `json:"scheduled"`
}

// RegisterChannels puts every billing channel on the allow-list.
func RegisterChannels(b *Bridge, queue PrintQueue, drafts Drafts) {
	// Print queue
	b.Handle(ChannelAddPrintJob, Typed(b, func(ctx context.Context, bill *entity.BillData) (*entity.AddPrintJobResult, error) {
		return queue.AddPrintJob(ctx, bill)
	}))
	b.Handle(ChannelGetPrintQueue, NoArgs(queue.GetPrintQueue))
	b.Handle(ChannelRetryFailedJobs, NoArgs(queue.RetryFailedJobs))
	b.Handle(ChannelClearPrintQueue, NoArgs(queue.ClearPrintQueue))
	b.Handle(ChannelGetPrinterStatus, NoArgs(func(ctx context.Context) (*entity.PrinterStatus, error) {
		return queue.PrinterStatus(ctx), nil
	}))

	// Drafts
	b.Handle(ChannelLoadDraft, NoArgs(func(ctx context.Context) (*entity.DraftBill, error) {
		return drafts.LoadDraft(ctx), nil
	}))
	b.Handle(ChannelSaveDraft, Typed(b, func(ctx context.Context, req *SaveDraftRequest) (bool, error) {
		return drafts.SaveDraft(ctx, req.BillTabs, req.ActiveTabID), nil
	}))
	b.Handle(ChannelAutoSaveDraft, Typed(b, func(ctx context.Context, req *SaveDraftRequest) (AutoSaveResult, error) {
		drafts.AutoSaveDraft(ctx, req.BillTabs, req.ActiveTabID)
		return AutoSaveResult{Scheduled: true}, nil
	}))
	b.Handle(ChannelClearDraft, NoArgs(func(ctx context.Context) (bool, error) {
		return drafts.ClearDraft(ctx), nil
	}))
	b.Handle(ChannelHasDraft, NoArgs(func(ctx context.Context) (bool, error) {
		return drafts.HasDraft(ctx), nil
	}))
	b.Handle(ChannelGetDraftAge, NoArgs(func(ctx context.Context) (*int, error) {
		return drafts.GetDraftAge(ctx), nil
	}))
	b.Handle(ChannelHasUnsavedChanges, NoArgs(func(ctx context.Context) (bool, error) {
		return drafts.HasUnsavedChanges(ctx), nil
	}))
	b.Handle(ChannelFlushDraft, NoArgs(func(ctx context.Context) (bool, error) {
		return drafts.FlushDraft(ctx), nil
	}))
}
