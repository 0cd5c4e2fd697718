package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/repository"
	infraRepo "github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/pkg/pagination"
	"github.com/sangkips/gstbill-desk/pkg/printer"
)

// --- printer ---

type fakePrinter struct {
	mu        sync.Mutex
	err       error
	available bool
	delay     time.Duration
	block     chan struct{}
	panicMsg  string
	prints    [][]byte

	inflight    int32
	maxInflight int32
}

func (p *fakePrinter) Print(ctx context.Context, data []byte) error {
	n := atomic.AddInt32(&p.inflight, 1)
	defer atomic.AddInt32(&p.inflight, -1)
	for {
		cur := atomic.LoadInt32(&p.maxInflight)
		if n <= cur || atomic.CompareAndSwapInt32(&p.maxInflight, cur, n) {
			break
		}
	}

	p.mu.Lock()
	block, delay, panicMsg := p.block, p.delay, p.panicMsg
	p.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.prints = append(p.prints, append([]byte(nil), data...))
	return p.err
}

func (p *fakePrinter) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *fakePrinter) Info() printer.Info {
	return printer.Info{Name: "Counter", Type: printer.TypeNetwork, Target: "127.0.0.1:9100", Configured: true}
}

func (p *fakePrinter) Close() error { return nil }

func (p *fakePrinter) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePrinter) setAvailable(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = v
}

func (p *fakePrinter) printCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prints)
}

// --- print job repository ---

type fakeJobRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]entity.PrintJob
	stats   *entity.PrintQueueStatsRecord
	saveErr error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]entity.PrintJob)}
}

func (r *fakeJobRepo) Save(ctx context.Context, job *entity.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.jobs[job.ID] = *job.Clone()
	return nil
}

func (r *fakeJobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *fakeJobRepo) ListActive(ctx context.Context) ([]entity.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.PrintJob
	for _, j := range r.jobs {
		if j.IsActive() {
			out = append(out, *j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].QueueSeq < out[k].QueueSeq })
	return out, nil
}

func (r *fakeJobRepo) List(ctx context.Context, filter repository.PrintJobFilter, params *pagination.Params) ([]entity.PrintJob, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenantID, scoped := infraRepo.GetTenantID(ctx)
	var all []entity.PrintJob
	for _, j := range r.jobs {
		if scoped && j.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		all = append(all, *j.Clone())
	}
	sort.Slice(all, func(i, k int) bool { return all[i].CreatedAt.After(all[k].CreatedAt) })

	start := params.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *fakeJobRepo) LoadStats(ctx context.Context) (*entity.PrintQueueStatsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return nil, nil
	}
	c := *r.stats
	return &c, nil
}

func (r *fakeJobRepo) SaveStats(ctx context.Context, stats *entity.PrintQueueStatsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	c := *stats
	r.stats = &c
	return nil
}

func (r *fakeJobRepo) get(id uuid.UUID) (entity.PrintJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

func (r *fakeJobRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// --- publisher ---

type publishedEvent struct {
	name    string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, payload: payload})
}

func (p *fakePublisher) named(name string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// --- draft store ---

type countingStore struct {
	*infraRepo.MemoryDraftStore
	mu     sync.Mutex
	sets   int
	setErr error
	getErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryDraftStore: infraRepo.NewMemoryDraftStore()}
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryDraftStore.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryDraftStore.Set(ctx, key, value)
}

func (s *countingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

var errQuotaExceeded = errors.New("quota exceeded")
