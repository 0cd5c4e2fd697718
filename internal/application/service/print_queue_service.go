package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/enum"
	"github.com/sangkips/gstbill-desk/internal/domain/repository"
	infraRepo "github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
	"github.com/sangkips/gstbill-desk/pkg/clock"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
	"github.com/sangkips/gstbill-desk/pkg/printer"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Push event names delivered to subscribed tabs.
const (
	EventPrintQueueChange = "onPrintQueueChange"
	EventPrintJobUpdate   = "onPrintJobUpdate"
)

// EventPublisher delivers push events to subscribers. Publish must not block.
type EventPublisher interface {
	Publish(event string, payload any)
}

// PrintQueueOptions tunes the print queue.
type PrintQueueOptions struct {
	// ListLimit bounds jobs.pending and jobs.failed in snapshots.
	ListLimit int
	// MaxRetries is the retryCount at which a failing job is marked exhausted.
	MaxRetries     int
	PollInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	PrinterTimeout time.Duration
	JournalFlush   time.Duration
	PaperWidth     int
	Header         entity.ReceiptHeader
	Footer         string
}

func (o *PrintQueueOptions) setDefaults() {
	if o.ListLimit <= 0 {
		o.ListLimit = 20
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 5 * time.Second
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.Multiplier < 1 {
		o.Multiplier = 2
	}
	if o.PrinterTimeout <= 0 {
		o.PrinterTimeout = 15 * time.Second
	}
	if o.JournalFlush <= 0 {
		o.JournalFlush = 500 * time.Millisecond
	}
	if o.PaperWidth <= 0 {
		o.PaperWidth = printer.Width58mm
	}
}

type journalEntry struct {
	job     *entity.PrintJob
	deleted bool
}

// PrintQueueService accepts print jobs and prints them one at a time, in
// submission order, on a single printer. It is the only writer of PrintJobs;
// callers receive copies.
type PrintQueueService struct {
	printer   printer.Printer
	repo      repository.PrintJobRepository
	publisher EventPublisher
	clock     clock.Clock
	opts      PrintQueueOptions
	logger    *zap.Logger
	tracer    trace.Tracer

	mu        sync.Mutex
	pending   []*entity.PrintJob
	failed    []*entity.PrintJob
	current   *entity.PrintJob
	completed int
	stats     entity.PrintQueueStats
	seq       int64
	started   bool
	stopped   bool
	cancel    context.CancelFunc

	// journal state, guarded by mu
	dirty      map[uuid.UUID]journalEntry
	statsDirty bool

	wake        chan struct{}
	journalWake chan struct{}
	flushMu     sync.Mutex
	wg          sync.WaitGroup

	// pubMu is taken before mu is released so events leave in the order
	// their snapshots were taken.
	pubMu sync.Mutex
}

// NewPrintQueueService creates a print queue. repo and publisher may be nil.
// Call Restore and then Start to begin printing.
func NewPrintQueueService(
	p printer.Printer,
	repo repository.PrintJobRepository,
	publisher EventPublisher,
	clk clock.Clock,
	opts PrintQueueOptions,
	logger *zap.Logger,
) *PrintQueueService {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintQueueService{
		printer:     p,
		repo:        repo,
		publisher:   publisher,
		clock:       clk,
		opts:        opts,
		logger:      logger,
		tracer:      otel.Tracer("github.com/sangkips/gstbill-desk/print-queue"),
		dirty:       make(map[uuid.UUID]journalEntry),
		wake:        make(chan struct{}, 1),
		journalWake: make(chan struct{}, 1),
	}
}

// Restore reloads unfinished jobs and lifetime counters from the journal.
// A job that was printing when the host stopped goes back to pending.
func (s *PrintQueueService) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	jobs, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load print jobs: %w", err)
	}
	rec, err := s.repo.LoadStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load print stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var interrupted []*entity.PrintJob
	for i := range jobs {
		job := &jobs[i]
		if job.QueueSeq > s.seq {
			s.seq = job.QueueSeq
		}
		switch job.Status {
		case enum.PrintJobStatusPrinting:
			job.Status = enum.PrintJobStatusPending
			job.StartedAt = nil
			interrupted = append(interrupted, job)
			s.markDirtyLocked(job)
		case enum.PrintJobStatusPending:
			s.pending = append(s.pending, job)
		case enum.PrintJobStatusFailed:
			s.failed = append(s.failed, job)
		}
	}
	// Interrupted jobs were at the head of the queue.
	s.pending = append(interrupted, s.pending...)

	if rec != nil {
		s.stats = entity.PrintQueueStats{
			TotalPrinted: rec.TotalPrinted,
			TotalFailed:  rec.TotalFailed,
			TotalRetries: rec.TotalRetries,
		}
	}

	s.logger.Info("print queue restored",
		zap.Int("pending", len(s.pending)),
		zap.Int("failed", len(s.failed)),
		zap.Int("interrupted", len(interrupted)),
	)
	return nil
}

// Start launches the print worker, the auto-retry loop and the journal writer.
func (s *PrintQueueService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(2)
	go s.worker(ctx)
	go s.retryLoop(ctx)
	if s.repo != nil {
		s.wg.Add(1)
		go s.journalLoop(ctx)
	}
	s.signal(s.wake)
}

// Stop halts processing, returns an in-flight job to the head of the queue
// and writes the journal one last time.
func (s *PrintQueueService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("print queue did not stop in time: %w", ctx.Err())
	}

	s.flush(ctx)
	s.logger.Info("print queue stopped")
	return nil
}

// AddPrintJob enqueues a bill for printing and returns without waiting for
// the printer.
func (s *PrintQueueService) AddPrintJob(ctx context.Context, bill *entity.BillData) (*entity.AddPrintJobResult, error) {
	raw, err := json.Marshal(bill)
	if err != nil {
		return nil, apperror.NewBadRequestError("Invalid bill data")
	}

	now := s.clock.Now()
	job := &entity.PrintJob{
		ID:         uuid.New(),
		BillNumber: bill.BillNumber,
		Status:     enum.PrintJobStatusPending,
		Copies:     bill.CopyCount(),
		Printer:    s.printer.Info().Name,
		Bill:       raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if tenantID, ok := infraRepo.GetTenantID(ctx); ok {
		job.TenantID = tenantID
	}
	if userID, ok := infraRepo.GetUserID(ctx); ok {
		job.UserID = userID
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, apperror.ErrPrintUnavailable
	}
	s.seq++
	job.QueueSeq = s.seq
	s.pending = append(s.pending, job)
	s.markDirtyLocked(job)
	status := s.snapshotLocked()
	s.signal(s.wake)
	s.unlockAndPublish([]entity.PrintJobSummary{job.ToSummary()}, &status)

	s.logger.Info("print job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("bill_number", job.BillNumber),
	)
	return &entity.AddPrintJobResult{Success: true, JobID: job.ID.String()}, nil
}

// GetPrintQueue returns a snapshot of the queue. It performs no I/O.
func (s *PrintQueueService) GetPrintQueue(ctx context.Context) (*entity.PrintQueueStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, apperror.ErrPrintUnavailable
	}
	status := s.snapshotLocked()
	return &status, nil
}

// RetryFailedJobs moves every failed job, exhausted ones included, back to
// pending and increments its retry count.
func (s *PrintQueueService) RetryFailedJobs(ctx context.Context) (*entity.RetryResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, apperror.ErrPrintUnavailable
	}
	if len(s.failed) == 0 {
		s.mu.Unlock()
		return &entity.RetryResult{RetriedCount: 0}, nil
	}

	retried := s.failed
	s.failed = nil
	summaries := make([]entity.PrintJobSummary, 0, len(retried))
	for _, job := range retried {
		s.requeueLocked(job)
		summaries = append(summaries, job.ToSummary())
	}
	s.stats.TotalRetries += int64(len(retried))
	s.statsDirty = true
	status := s.snapshotLocked()
	s.signal(s.wake)
	s.signal(s.journalWake)
	s.unlockAndPublish(summaries, &status)

	s.logger.Info("failed print jobs re-queued", zap.Int("count", len(retried)))
	return &entity.RetryResult{RetriedCount: len(retried)}, nil
}

// ClearPrintQueue discards every pending and failed job. A job that is
// printing right now is left to finish. Lifetime counters are unchanged.
func (s *PrintQueueService) ClearPrintQueue(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false, apperror.ErrPrintUnavailable
	}
	removed := len(s.pending) + len(s.failed)
	for _, job := range s.pending {
		s.markDeletedLocked(job.ID)
	}
	for _, job := range s.failed {
		s.markDeletedLocked(job.ID)
	}
	s.pending = nil
	s.failed = nil
	status := s.snapshotLocked()
	s.unlockAndPublish(nil, &status)

	s.logger.Info("print queue cleared", zap.Int("removed", removed))
	return true, nil
}

// PrinterStatus reports the configured printer and whether it is reachable.
func (s *PrintQueueService) PrinterStatus(ctx context.Context) *entity.PrinterStatus {
	info := s.printer.Info()

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return &entity.PrinterStatus{
		Name:       info.Name,
		Type:       info.Type,
		Target:     info.Target,
		Configured: info.Configured,
		Connected:  s.printer.Available(checkCtx),
	}
}

// TestPrint queues a sample receipt. It goes through the queue so it never
// races a real job for the printer.
func (s *PrintQueueService) TestPrint(ctx context.Context) (*entity.Receipt, *entity.AddPrintJobResult, error) {
	now := s.clock.Now()
	bill := &entity.BillData{
		BillNumber: utils.GenerateReferenceNo("TEST"),
		Date:       &now,
		Cashier:    "System",
		Items: []entity.BillItem{
			{ProductName: "Test Item 1", HSNCode: "0000", Unit: "pcs", Quantity: 1, Rate: 10, GSTPercentage: 18},
			{ProductName: "Test Item 2", HSNCode: "0000", Unit: "pcs", Quantity: 2, Rate: 5, GSTPercentage: 5},
		},
		PaymentSplits: []entity.PaymentSplit{{PaymentType: "cash", Amount: 25}},
	}

	receipt := BuildReceipt(s.opts.Header, s.opts.Footer, bill, now)
	result, err := s.AddPrintJob(ctx, bill)
	if err != nil {
		return receipt, nil, err
	}
	return receipt, result, nil
}

// ListJobs returns the tenant's persisted print history.
func (s *PrintQueueService) ListJobs(ctx context.Context, filter repository.PrintJobFilter, params *pagination.Params) (*pagination.Page[entity.PrintJob], error) {
	if s.repo == nil {
		return nil, apperror.NewServiceUnavailableError("Print history is not available")
	}
	params.Normalize()

	jobs, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		s.logger.Error("failed to list print jobs", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	return pagination.NewPage(jobs, params, total), nil
}

// --- worker ---

func (s *PrintQueueService) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		job := s.next()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		err := s.process(ctx, job)
		if err != nil && ctx.Err() != nil {
			s.interrupt(job)
			return
		}
		s.finish(job, err)
	}
}

// next pops the head of the queue and marks it printing.
func (s *PrintQueueService) next() *entity.PrintJob {
	s.mu.Lock()
	if s.current != nil || len(s.pending) == 0 || s.stopped {
		s.mu.Unlock()
		return nil
	}

	job := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]

	now := s.clock.Now()
	job.Status = enum.PrintJobStatusPrinting
	job.StartedAt = &now
	job.UpdatedAt = now
	job.Attempts++
	s.current = job
	s.markDirtyLocked(job)
	status := s.snapshotLocked()
	s.unlockAndPublish([]entity.PrintJobSummary{job.ToSummary()}, &status)
	return job
}

// process renders and prints every copy of the job. Job fields read here
// are never written after the job is created.
func (s *PrintQueueService) process(ctx context.Context, job *entity.PrintJob) (err error) {
	ctx, span := s.tracer.Start(ctx, "print_job.process", trace.WithAttributes(
		attribute.String("print_job.id", job.ID.String()),
		attribute.String("print_job.bill_number", job.BillNumber),
		attribute.Int("print_job.copies", job.Copies),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("printer driver crashed: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var bill entity.BillData
	if err := json.Unmarshal(job.Bill, &bill); err != nil {
		return fmt.Errorf("invalid bill data: %w", err)
	}
	data := FormatReceipt(BuildReceipt(s.opts.Header, s.opts.Footer, &bill, job.CreatedAt), s.opts.PaperWidth)

	copies := job.Copies
	if copies < 1 {
		copies = 1
	}
	for i := 0; i < copies; i++ {
		if err := s.printOnce(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *PrintQueueService) printOnce(ctx context.Context, data []byte) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.PrinterTimeout)
	defer cancel()

	err := s.printer.Print(attemptCtx, data)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("printer did not respond within %s", s.opts.PrinterTimeout)
	}
	return err
}

// finish records the outcome of a print attempt.
func (s *PrintQueueService) finish(job *entity.PrintJob, printErr error) {
	s.mu.Lock()
	now := s.clock.Now()
	s.current = nil
	job.UpdatedAt = now

	if printErr == nil {
		job.Status = enum.PrintJobStatusCompleted
		job.CompletedAt = &now
		job.Error = ""
		job.NextRetryAt = nil
		s.completed++
		s.stats.TotalPrinted++
	} else {
		job.Status = enum.PrintJobStatusFailed
		job.Error = printErr.Error()
		job.FailedAt = &now
		if job.RetryCount >= s.opts.MaxRetries {
			job.Exhausted = true
			job.NextRetryAt = nil
		} else {
			next := now.Add(s.backoff(job.RetryCount))
			job.NextRetryAt = &next
		}
		s.failed = append(s.failed, job)
		s.stats.TotalFailed++
	}
	s.statsDirty = true
	s.markDirtyLocked(job)
	status := s.snapshotLocked()
	summary := job.ToSummary()
	s.unlockAndPublish([]entity.PrintJobSummary{summary}, &status)

	if printErr != nil {
		s.logger.Warn("print job failed",
			zap.String("job_id", job.ID.String()),
			zap.Int("retry_count", summary.RetryCount),
			zap.Bool("exhausted", summary.Exhausted),
			zap.Error(printErr),
		)
		return
	}
	s.logger.Info("print job completed", zap.String("job_id", job.ID.String()))
}

// interrupt puts a job cut short by shutdown back at the head of the queue.
func (s *PrintQueueService) interrupt(job *entity.PrintJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	job.Status = enum.PrintJobStatusPending
	job.StartedAt = nil
	job.UpdatedAt = s.clock.Now()
	s.pending = append([]*entity.PrintJob{job}, s.pending...)
	s.markDirtyLocked(job)
}

// --- auto-retry ---

func (s *PrintQueueService) retryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.autoRetry(ctx)
		}
	}
}

// autoRetry re-queues failed jobs whose backoff has elapsed, provided the
// printer is reachable. Exhausted jobs are left for a manual retry.
func (s *PrintQueueService) autoRetry(ctx context.Context) int {
	if !s.hasDueRetries() {
		return 0
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.opts.PrinterTimeout)
	available := s.printer.Available(checkCtx)
	cancel()
	if !available {
		return 0
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	now := s.clock.Now()
	var retried []*entity.PrintJob
	remaining := s.failed[:0]
	for _, job := range s.failed {
		if isDue(job, now) {
			retried = append(retried, job)
			continue
		}
		remaining = append(remaining, job)
	}
	for i := len(remaining); i < len(s.failed); i++ {
		s.failed[i] = nil
	}
	s.failed = remaining

	summaries := make([]entity.PrintJobSummary, 0, len(retried))
	for _, job := range retried {
		s.requeueLocked(job)
		summaries = append(summaries, job.ToSummary())
	}
	if len(retried) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.stats.TotalRetries += int64(len(retried))
	s.statsDirty = true
	status := s.snapshotLocked()
	s.signal(s.wake)
	s.signal(s.journalWake)
	s.unlockAndPublish(summaries, &status)

	s.logger.Info("printer available, failed jobs re-queued", zap.Int("count", len(retried)))
	return len(retried)
}

func (s *PrintQueueService) hasDueRetries() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, job := range s.failed {
		if isDue(job, now) {
			return true
		}
	}
	return false
}

func isDue(job *entity.PrintJob, now time.Time) bool {
	return !job.Exhausted && job.NextRetryAt != nil && !now.Before(*job.NextRetryAt)
}

// backoff returns min(initial * multiplier^retryCount, max).
func (s *PrintQueueService) backoff(retryCount int) time.Duration {
	d := float64(s.opts.InitialBackoff) * math.Pow(s.opts.Multiplier, float64(retryCount))
	if d > float64(s.opts.MaxBackoff) || math.IsInf(d, 0) {
		return s.opts.MaxBackoff
	}
	return time.Duration(d)
}

// requeueLocked moves a failed job to the tail of pending. Caller holds mu.
func (s *PrintQueueService) requeueLocked(job *entity.PrintJob) {
	s.seq++
	job.QueueSeq = s.seq
	job.Status = enum.PrintJobStatusPending
	job.RetryCount++
	job.Exhausted = false
	job.Error = ""
	job.NextRetryAt = nil
	job.UpdatedAt = s.clock.Now()
	s.pending = append(s.pending, job)
	s.markDirtyLocked(job)
}

// --- snapshots and events ---

// snapshotLocked builds a queue status. Caller holds mu.
func (s *PrintQueueService) snapshotLocked() entity.PrintQueueStatus {
	status := entity.PrintQueueStatus{
		Pending:      len(s.pending),
		Failed:       len(s.failed),
		Completed:    s.completed,
		IsProcessing: s.current != nil,
		Stats:        s.stats,
		Jobs: entity.PrintQueueJobs{
			Pending: summarize(s.pending, s.opts.ListLimit),
			Failed:  summarize(s.failed, s.opts.ListLimit),
		},
	}
	for _, job := range s.failed {
		if job.Exhausted {
			status.Exhausted++
		}
	}
	if info := s.printer.Info(); info.Configured {
		name := info.Name
		status.DefaultPrinter = &name
	}
	return status
}

func summarize(jobs []*entity.PrintJob, limit int) []entity.PrintJobSummary {
	n := len(jobs)
	if n > limit {
		n = limit
	}
	out := make([]entity.PrintJobSummary, 0, n)
	for _, job := range jobs[:n] {
		out = append(out, job.ToSummary())
	}
	return out
}

// unlockAndPublish releases s.mu and publishes the job updates, then the
// queue snapshot. Caller holds s.mu.
func (s *PrintQueueService) unlockAndPublish(summaries []entity.PrintJobSummary, status *entity.PrintQueueStatus) {
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	if s.publisher == nil {
		return
	}
	for _, summary := range summaries {
		s.publisher.Publish(EventPrintJobUpdate, summary)
	}
	if status != nil {
		s.publisher.Publish(EventPrintQueueChange, *status)
	}
}

func (s *PrintQueueService) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// --- journal ---

// markDirtyLocked records the job's current state for the journal. Caller holds mu.
func (s *PrintQueueService) markDirtyLocked(job *entity.PrintJob) {
	if s.repo == nil {
		return
	}
	s.dirty[job.ID] = journalEntry{job: job.Clone()}
	s.signal(s.journalWake)
}

// markDeletedLocked records that a job was discarded. Caller holds mu.
func (s *PrintQueueService) markDeletedLocked(id uuid.UUID) {
	if s.repo == nil {
		return
	}
	s.dirty[id] = journalEntry{deleted: true}
	s.signal(s.journalWake)
}

func (s *PrintQueueService) journalLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.opts.JournalFlush)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.journalWake:
		case <-ticker.C():
		}
		s.flush(ctx)
	}
}

// flush writes every dirty job and the counters. Entries that fail to write
// are kept unless a newer state replaced them in the meantime.
func (s *PrintQueueService) flush(ctx context.Context) {
	if s.repo == nil {
		return
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.dirty
	s.dirty = make(map[uuid.UUID]journalEntry)
	statsDirty := s.statsDirty
	s.statsDirty = false
	stats := s.stats
	s.mu.Unlock()

	if len(batch) == 0 && !statsDirty {
		return
	}

	// Shutdown cancels ctx; the final flush still has to land.
	writeCtx := context.WithoutCancel(ctx)
	failed := make(map[uuid.UUID]journalEntry)
	for id, entry := range batch {
		var err error
		if entry.deleted {
			err = s.repo.Delete(writeCtx, id)
		} else {
			err = s.repo.Save(writeCtx, entry.job)
		}
		if err != nil {
			s.logger.Warn("failed to journal print job", zap.String("job_id", id.String()), zap.Error(err))
			failed[id] = entry
		}
	}

	statsFailed := false
	if statsDirty {
		rec := &entity.PrintQueueStatsRecord{
			TotalPrinted: stats.TotalPrinted,
			TotalFailed:  stats.TotalFailed,
			TotalRetries: stats.TotalRetries,
		}
		if err := s.repo.SaveStats(writeCtx, rec); err != nil {
			s.logger.Warn("failed to journal print stats", zap.Error(err))
			statsFailed = true
		}
	}

	if len(failed) == 0 && !statsFailed {
		return
	}
	s.mu.Lock()
	for id, entry := range failed {
		if _, newer := s.dirty[id]; !newer {
			s.dirty[id] = entry
		}
	}
	if statsFailed {
		s.statsDirty = true
	}
	s.mu.Unlock()
}
