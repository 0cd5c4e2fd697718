package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
)

type stubQueue struct {
	added   []*entity.BillData
	status  entity.PrintQueueStatus
	stopped bool
	panics  bool
}

func (q *stubQueue) AddPrintJob(ctx context.Context, bill *entity.BillData) (*entity.AddPrintJobResult, error) {
	if q.stopped {
		return nil, apperror.ErrPrintUnavailable
	}
	q.added = append(q.added, bill)
	return &entity.AddPrintJobResult{Success: true, JobID: "job-1"}, nil
}

func (q *stubQueue) GetPrintQueue(ctx context.Context) (*entity.PrintQueueStatus, error) {
	if q.panics {
		panic("queue state corrupted")
	}
	if q.stopped {
		return nil, apperror.ErrPrintUnavailable
	}
	st := q.status
	return &st, nil
}

func (q *stubQueue) RetryFailedJobs(ctx context.Context) (*entity.RetryResult, error) {
	return &entity.RetryResult{RetriedCount: 2}, nil
}

func (q *stubQueue) ClearPrintQueue(ctx context.Context) (bool, error) {
	return true, nil
}

func (q *stubQueue) PrinterStatus(ctx context.Context) *entity.PrinterStatus {
	return &entity.PrinterStatus{Name: "Counter", Type: "network", Configured: true, Connected: true}
}

type stubDrafts struct {
	draft     *entity.DraftBill
	saved     *SaveDraftRequest
	scheduled *SaveDraftRequest
	age       *int
}

func (d *stubDrafts) LoadDraft(ctx context.Context) *entity.DraftBill { return d.draft }

func (d *stubDrafts) SaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) bool {
	d.saved = &SaveDraftRequest{BillTabs: tabs, ActiveTabID: activeTabID}
	return entity.HasContent(tabs)
}

func (d *stubDrafts) AutoSaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) {
	d.scheduled = &SaveDraftRequest{BillTabs: tabs, ActiveTabID: activeTabID}
}

func (d *stubDrafts) ClearDraft(ctx context.Context) bool { return true }
func (d *stubDrafts) HasDraft(ctx context.Context) bool { return d.draft != nil }
func (d *stubDrafts) GetDraftAge(ctx context.Context) *int { return d.age }
func (d *stubDrafts) HasUnsavedChanges(ctx context.Context) bool { return d.scheduled != nil }
func (d *stubDrafts) FlushDraft(ctx context.Context) bool { return false }

func newTestBridge() (*Bridge, *stubQueue, *stubDrafts) {
	q := &stubQueue{}
	d := &stubDrafts{}
	b := New(nil)
	RegisterChannels(b, q, d)
	return b, q, d
}

// invokeJSON runs a channel and round-trips the result through JSON, the
// way every transport delivers it.
func invokeJSON(t *testing.T, b *Bridge, channel, payload string) (string, error) {
	t.Helper()
	res, err := b.Invoke(context.Background(), channel, json.RawMessage(payload))
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal %s result: %v", channel, err)
	}
	return string(out), nil
}

func TestRegisterChannels_AllowList(t *testing.T) {
	b, _, _ := newTestBridge()

	want := []string{
		"addPrintJob", "autoSaveDraft", "clearDraft", "clearPrintQueue", "flushDraft",
		"getDraftAge", "getPrintQueue", "getPrinterStatus", "hasDraft", "hasUnsavedChanges",
		"loadDraft", "retryFailedJobs", "saveDraft",
	}
	got := b.Channels()
	if len(got) != len(want) {
		t.Fatalf("channels = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channels[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInvoke_RejectsUnknownChannel(t *testing.T) {
	b, _, _ := newTestBridge()

	for _, channel := range []string{"", "exec", "require", "AddPrintJob"} {
		_, err := b.Invoke(context.Background(), channel, nil)
		if !errors.Is(err, apperror.ErrChannelNotAllowed) {
			t.Errorf("channel %q: err = %v, want not allowed", channel, err)
		}
		if b.Allowed(channel) {
			t.Errorf("channel %q reported as allowed", channel)
		}
	}
}

func TestInvoke_PanicReportsUnavailable(t *testing.T) {
	b, q, _ := newTestBridge()
	q.panics = true

	_, err := b.Invoke(context.Background(), ChannelGetPrintQueue, nil)
	if appErr := apperror.GetAppError(err); appErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}
}

func TestInvoke_StoppedQueueReportsUnavailable(t *testing.T) {
	b, q, _ := newTestBridge()
	q.stopped = true

	_, err := b.Invoke(context.Background(), ChannelGetPrintQueue, nil)
	if !errors.Is(err, apperror.ErrPrintUnavailable) {
		t.Fatalf("err = %v, want print unavailable", err)
	}
}

func TestAddPrintJob_Validation(t *testing.T) {
	b, q, _ := newTestBridge()

	tests := []struct {
		name      string
		payload   string
		wantCode  int
		wantField string
	}{
		{"empty payload", ``, http.StatusUnprocessableEntity, "items"},
		{"no items", `{"billNumber":"B1","items":[]}`, http.StatusUnprocessableEntity, "items"},
		{"item without name", `{"items":[{"quantity":1,"rate":10}]}`, http.StatusUnprocessableEntity, "items[0].product_name"},
		{"zero quantity", `{"items":[{"product_name":"Tea","quantity":0,"rate":10}]}`, http.StatusUnprocessableEntity, "items[0].quantity"},
		{"bad gstin", `{"customer_gstin":"12345","items":[{"product_name":"Tea","quantity":1,"rate":10}]}`, http.StatusUnprocessableEntity, "customer_gstin"},
		{"too many copies", `{"copies":9,"items":[{"product_name":"Tea","quantity":1,"rate":10}]}`, http.StatusUnprocessableEntity, "copies"},
		{"malformed json", `{"items":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Invoke(context.Background(), ChannelAddPrintJob, json.RawMessage(tt.payload))
			appErr := apperror.GetAppError(err)
			if appErr.Code != tt.wantCode {
				t.Fatalf("code = %d (%v), want %d", appErr.Code, err, tt.wantCode)
			}
			if tt.wantField == "" {
				return
			}
			for _, fe := range appErr.Errors {
				if fe.Field == tt.wantField {
					return
				}
			}
			t.Fatalf("no error for field %q in %+v", tt.wantField, appErr.Errors)
		})
	}
	if len(q.added) != 0 {
		t.Fatalf("invalid bills reached the queue")
	}
}

func TestAddPrintJob_Accepted(t *testing.T) {
	b, q, _ := newTestBridge()

	out, err := invokeJSON(t, b, ChannelAddPrintJob,
		`{"billNumber":"INV-7","customer_gstin":"27aapfu0939f1zv","items":[{"product_name":"Tea","quantity":2,"rate":10,"gst_percentage":5}]}`)
	if err != nil {
		t.Fatalf("addPrintJob: %v", err)
	}
	if out != `{"success":true,"jobId":"job-1"}` {
		t.Fatalf("result = %s", out)
	}
	if len(q.added) != 1 || q.added[0].BillNumber != "INV-7" || q.added[0].Items[0].Quantity != 2 {
		t.Fatalf("bill not passed through: %+v", q.added)
	}
}

func TestQueueChannels(t *testing.T) {
	b, q, _ := newTestBridge()
	q.status = entity.PrintQueueStatus{Pending: 3}

	out, err := invokeJSON(t, b, ChannelGetPrintQueue, "")
	if err != nil {
		t.Fatalf("getPrintQueue: %v", err)
	}
	var st entity.PrintQueueStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil || st.Pending != 3 {
		t.Fatalf("status = %s (%v)", out, err)
	}

	if out, _ := invokeJSON(t, b, ChannelRetryFailedJobs, "null"); out != `{"retriedCount":2}` {
		t.Fatalf("retryFailedJobs = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelClearPrintQueue, ""); out != "true" {
		t.Fatalf("clearPrintQueue = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelGetPrinterStatus, ""); out != `{"name":"Counter","type":"network","configured":true,"connected":true}` {
		t.Fatalf("getPrinterStatus = %s", out)
	}
}

func TestDraftChannels(t *testing.T) {
	b, _, d := newTestBridge()

	if out, _ := invokeJSON(t, b, ChannelLoadDraft, ""); out != "null" {
		t.Fatalf("loadDraft without draft = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelGetDraftAge, ""); out != "null" {
		t.Fatalf("getDraftAge without draft = %s", out)
	}

	payload := `{"billTabs":[{"id":"t1","customer_name":"Ravi","items":[]}],"activeTabId":"t1"}`
	if out, _ := invokeJSON(t, b, ChannelSaveDraft, payload); out != "true" {
		t.Fatalf("saveDraft = %s", out)
	}
	if d.saved == nil || d.saved.ActiveTabID != "t1" || d.saved.BillTabs[0].CustomerName != "Ravi" {
		t.Fatalf("saveDraft payload not decoded: %+v", d.saved)
	}

	// Tabs being edited may hold incomplete items; they are not validated.
	partial := `{"billTabs":[{"id":"t2","items":[{"product_name":"","quantity":0}]}],"activeTabId":"t2"}`
	if out, err := invokeJSON(t, b, ChannelAutoSaveDraft, partial); err != nil || out != `{"scheduled":true}` {
		t.Fatalf("autoSaveDraft = %s (%v)", out, err)
	}
	if out, _ := invokeJSON(t, b, ChannelHasUnsavedChanges, ""); out != "true" {
		t.Fatalf("hasUnsavedChanges = %s", out)
	}

	age := 4
	d.age = &age
	d.draft = &entity.DraftBill{ActiveTabID: "t1"}
	if out, _ := invokeJSON(t, b, ChannelGetDraftAge, ""); out != "4" {
		t.Fatalf("getDraftAge = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelHasDraft, ""); out != "true" {
		t.Fatalf("hasDraft = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelClearDraft, ""); out != "true" {
		t.Fatalf("clearDraft = %s", out)
	}
	if out, _ := invokeJSON(t, b, ChannelFlushDraft, ""); out != "false" {
		t.Fatalf("flushDraft = %s", out)
	}
}
