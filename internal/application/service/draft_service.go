package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/domain/repository"
	infraRepo "github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/pkg/clock"
	"github.com/sangkips/gstbill-desk/pkg/debounce"
	"go.uber.org/zap"
)

const (
	// DraftStorageKey is the storage key of the billing draft.
	DraftStorageKey = "billing_draft"
	// DefaultAutoSaveDelay is how long edits must pause before an auto-save.
	DefaultAutoSaveDelay = 1500 * time.Millisecond

	draftStoreTimeout = 5 * time.Second
)

type draftInput struct {
	tabs        []entity.BillTab
	activeTabID string
	epoch       uint64
}

// DraftManager persists the billing draft stored under one key. Storage
// failures are logged and reported as "no draft" or "not saved"; they are
// never returned to callers.
type DraftManager struct {
	store     repository.DraftStore
	key       string
	clock     clock.Clock
	maxBytes  int
	logger    *zap.Logger
	debouncer *debounce.Debouncer

	mu      sync.Mutex
	pending *draftInput
	unsaved bool
	// epoch advances on every clear and explicit save. Writes captured
	// under an older epoch are dropped.
	epoch uint64

	// writeMu serializes store writes and deletes.
	writeMu sync.Mutex
}

// NewDraftManager creates a manager for key. maxBytes <= 0 disables the size cap.
func NewDraftManager(store repository.DraftStore, key string, clk clock.Clock, delay time.Duration, maxBytes int, logger *zap.Logger) *DraftManager {
	if delay <= 0 {
		delay = DefaultAutoSaveDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DraftManager{
		store:    store,
		key:      key,
		clock:    clk,
		maxBytes: maxBytes,
		logger:   logger.With(zap.String("draft_key", key)),
	}
	m.debouncer = debounce.New(clk, delay, func() { m.flushPending() })
	return m
}

// LoadDraft returns the stored draft, or nil when there is none or it cannot
// be read.
func (m *DraftManager) LoadDraft(ctx context.Context) (draft *entity.DraftBill) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("draft load panicked", zap.Any("panic", r))
			draft = nil
		}
	}()

	raw, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.logger.Warn("failed to read draft", zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var d entity.DraftBill
	if err := json.Unmarshal(raw, &d); err != nil {
		m.logger.Warn("ignoring corrupt draft", zap.Error(err))
		return nil
	}
	if len(d.BillTabs) == 0 {
		return nil
	}
	return &d
}

// SaveDraft writes the tabs if any of them has content. It replaces a
// scheduled auto-save, which holds older state. It returns false when there
// is nothing to save, the write failed, or a newer save or clear overtook it.
func (m *DraftManager) SaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) bool {
	m.mu.Lock()
	m.debouncer.Cancel()
	m.pending = nil
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()

	return m.write(ctx, tabs, activeTabID, epoch)
}

// AutoSaveDraft schedules a save of the given state once edits pause. Calls
// inside the delay window replace the scheduled state and restart the timer.
func (m *DraftManager) AutoSaveDraft(tabs []entity.BillTab, activeTabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = &draftInput{tabs: tabs, activeTabID: activeTabID, epoch: m.epoch}
	m.unsaved = true
	m.debouncer.Trigger()
}

// FlushDraft writes a scheduled auto-save immediately. It returns true if a
// scheduled save existed and was written.
func (m *DraftManager) FlushDraft() bool {
	if !m.debouncer.Cancel() {
		return false
	}
	return m.flushPending()
}

// ClearDraft removes the stored draft and drops any scheduled auto-save.
// It is idempotent.
func (m *DraftManager) ClearDraft(ctx context.Context) bool {
	m.mu.Lock()
	m.debouncer.Cancel()
	m.pending = nil
	m.unsaved = false
	m.epoch++
	m.mu.Unlock()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Warn("failed to clear draft", zap.Error(err))
		return false
	}
	return true
}

// HasDraft reports whether a readable draft is stored.
func (m *DraftManager) HasDraft(ctx context.Context) bool {
	return m.LoadDraft(ctx) != nil
}

// DraftAge returns the whole minutes since the draft was saved, or nil
// without a draft.
func (m *DraftManager) DraftAge(ctx context.Context) *int {
	d := m.LoadDraft(ctx)
	if d == nil {
		return nil
	}
	minutes := int(m.clock.Now().Sub(d.SavedAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return &minutes
}

// HasUnsavedChanges reports whether edits were made since the last
// successful save.
func (m *DraftManager) HasUnsavedChanges() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsaved
}

// Close writes any scheduled auto-save.
func (m *DraftManager) Close() {
	m.FlushDraft()
}

func (m *DraftManager) flushPending() bool {
	m.mu.Lock()
	in := m.pending
	m.pending = nil
	m.mu.Unlock()

	if in == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), draftStoreTimeout)
	defer cancel()
	return m.write(ctx, in.tabs, in.activeTabID, in.epoch)
}

func (m *DraftManager) write(ctx context.Context, tabs []entity.BillTab, activeTabID string, epoch uint64) (saved bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("draft save panicked", zap.Any("panic", r))
			saved = false
		}
	}()

	if !entity.HasContent(tabs) {
		m.markSaved()
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	superseded := epoch != m.epoch
	m.mu.Unlock()
	if superseded {
		return false
	}

	raw, err := json.Marshal(entity.DraftBill{
		BillTabs:    tabs,
		ActiveTabID: activeTabID,
		SavedAt:     m.clock.Now(),
	})
	if err != nil {
		m.logger.Warn("failed to encode draft", zap.Error(err))
		return false
	}
	if m.maxBytes > 0 && len(raw) > m.maxBytes {
		m.logger.Warn("draft exceeds storage quota",
			zap.Int("size", len(raw)),
			zap.Int("limit", m.maxBytes),
		)
		return false
	}

	if err := m.store.Set(ctx, m.key, raw); err != nil {
		m.logger.Warn("failed to save draft", zap.Error(err))
		return false
	}
	m.markSaved()
	return true
}

// markSaved clears the unsaved flag unless another auto-save is scheduled.
func (m *DraftManager) markSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil && !m.debouncer.Pending() {
		m.unsaved = false
	}
}

// DraftOptions configures the draft managers created by DraftService.
type DraftOptions struct {
	AutoSaveDelay time.Duration
	MaxBytes      int
}

// DraftService owns one DraftManager per storage key. Authenticated callers
// get a key namespaced by tenant and user.
type DraftService struct {
	store  repository.DraftStore
	clock  clock.Clock
	opts   DraftOptions
	logger *zap.Logger

	mu       sync.Mutex
	managers map[string]*DraftManager
}

// NewDraftService creates a new draft service.
func NewDraftService(store repository.DraftStore, clk clock.Clock, opts DraftOptions, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		store:    store,
		clock:    clk,
		opts:     opts,
		logger:   logger,
		managers: make(map[string]*DraftManager),
	}
}

// DraftKey returns the storage key for the caller in ctx.
func DraftKey(ctx context.Context) string {
	tenantID, hasTenant := infraRepo.GetTenantID(ctx)
	userID, hasUser := infraRepo.GetUserID(ctx)
	if !hasTenant || !hasUser {
		return DraftStorageKey
	}
	return fmt.Sprintf("%s:%s:%s", DraftStorageKey, tenantID, userID)
}

// Manager returns the draft manager for the caller in ctx.
func (s *DraftService) Manager(ctx context.Context) *DraftManager {
	key := DraftKey(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.managers[key]
	if !ok {
		m = NewDraftManager(s.store, key, s.clock, s.opts.AutoSaveDelay, s.opts.MaxBytes, s.logger)
		s.managers[key] = m
	}
	return m
}

func (s *DraftService) LoadDraft(ctx context.Context) *entity.DraftBill {
	return s.Manager(ctx).LoadDraft(ctx)
}

func (s *DraftService) SaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) bool {
	return s.Manager(ctx).SaveDraft(ctx, tabs, activeTabID)
}

func (s *DraftService) AutoSaveDraft(ctx context.Context, tabs []entity.BillTab, activeTabID string) {
	s.Manager(ctx).AutoSaveDraft(tabs, activeTabID)
}

func (s *DraftService) ClearDraft(ctx context.Context) bool {
	return s.Manager(ctx).ClearDraft(ctx)
}

func (s *DraftService) HasDraft(ctx context.Context) bool {
	return s.Manager(ctx).HasDraft(ctx)
}

func (s *DraftService) GetDraftAge(ctx context.Context) *int {
	return s.Manager(ctx).DraftAge(ctx)
}

func (s *DraftService) HasUnsavedChanges(ctx context.Context) bool {
	return s.Manager(ctx).HasUnsavedChanges()
}

func (s *DraftService) FlushDraft(ctx context.Context) bool {
	return s.Manager(ctx).FlushDraft()
}

// Close writes every scheduled auto-save. Called on shutdown.
func (s *DraftService) Close() {
	s.mu.Lock()
	managers := make([]*DraftManager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	for _, m := range managers {
		m.Close()
	}
}
