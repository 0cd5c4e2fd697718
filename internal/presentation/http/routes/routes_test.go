package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/gstbill-desk/internal/application/service"
	"github.com/sangkips/gstbill-desk/internal/bridge"
	"github.com/sangkips/gstbill-desk/internal/config"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	infraRepo "github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/handler"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/middleware"
	"github.com/sangkips/gstbill-desk/pkg/clock"
	"github.com/sangkips/gstbill-desk/pkg/printer"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := handler.RegisterValidators(); err != nil {
		panic(err)
	}
}

type memoryIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]*entity.IdempotencyKey
}

func (r *memoryIdempotencyRepo) GetByKey(_ context.Context, key string, userID uuid.UUID) (*entity.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[userID.String()+key], nil
}

func (r *memoryIdempotencyRepo) Create(_ context.Context, ikey *entity.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[ikey.UserID.String()+ikey.Key] = ikey
	return nil
}

func (r *memoryIdempotencyRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type testServer struct {
	router *gin.Engine
	jwt    *utils.JWTManager
	queue  *service.PrintQueueService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		App:       config.AppConfig{Name: "gstbill-desk"},
		RateLimit: config.RateLimitConfig{Requests: 100, Duration: 60},
	}
	jwtManager := utils.NewJWTManager("routes-secret", "gstbill-desk", time.Hour)

	clk := clock.New()
	hub := bridge.NewHub(0, nil)
	t.Cleanup(hub.Close)
	queue := service.NewPrintQueueService(printer.NewNullPrinter(), nil, hub, clk, service.PrintQueueOptions{}, nil)
	drafts := service.NewDraftService(infraRepo.NewMemoryDraftStore(), clk, service.DraftOptions{}, nil)
	t.Cleanup(drafts.Close)

	b := bridge.New(nil)
	bridge.RegisterChannels(b, queue, drafts)

	router := Setup(ctx, &Handlers{
		Bridge: handler.NewBridgeHandler(b, hub, queue, nil, nil),
		Print:  handler.NewPrintHandler(queue),
	}, &Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: &memoryIdempotencyRepo{keys: make(map[string]*entity.IdempotencyKey)},
		Queue:           queue,
		Logger:          zap.NewNop(),
	})

	return &testServer{router: router, jwt: jwtManager, queue: queue}
}

func (s *testServer) token(t *testing.T, tenantID uuid.UUID, permissions ...string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(uuid.New(), tenantID, "cashier@example.com", []string{"cashier"}, permissions)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (s *testServer) do(method, target, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["print_queue"] != "ok" || body["service"] != "gstbill-desk" {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id")
	}

	if err := s.queue.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	w = s.do(http.MethodGet, "/health", "", "", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["print_queue"] != "unavailable" {
		t.Errorf("print_queue = %q after stop", body["print_queue"])
	}
}

func TestRoutes_Access(t *testing.T) {
	s := newTestServer(t)
	tenantID := uuid.New()
	cashier := s.token(t, tenantID)
	manager := s.token(t, tenantID, PermissionManagePrinter)
	noTenant := s.token(t, uuid.Nil, PermissionManagePrinter)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		want   int
	}{
		{name: "bridge needs token", method: http.MethodPost, target: "/api/v1/bridge/invoke/getPrintQueue", want: http.StatusUnauthorized},
		{name: "bridge invoke", method: http.MethodPost, target: "/api/v1/bridge/invoke/getPrintQueue", token: cashier, want: http.StatusOK},
		{name: "bridge unknown channel", method: http.MethodPost, target: "/api/v1/bridge/invoke/shell", token: cashier, want: http.StatusForbidden},
		{name: "bridge channels", method: http.MethodGet, target: "/api/v1/bridge/channels", token: cashier, want: http.StatusOK},
		{name: "printer status needs permission", method: http.MethodGet, target: "/api/v1/printer/status", token: cashier, want: http.StatusForbidden},
		{name: "printer status", method: http.MethodGet, target: "/api/v1/printer/status", token: manager, want: http.StatusOK},
		{name: "queue", method: http.MethodGet, target: "/api/v1/print-jobs/queue", token: manager, want: http.StatusOK},
		{name: "history needs tenant", method: http.MethodGet, target: "/api/v1/print-jobs", token: noTenant, want: http.StatusBadRequest},
		{name: "history without journal", method: http.MethodGet, target: "/api/v1/print-jobs", token: manager, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.target, tt.token, tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRoutes_QueryToken(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New())

	w := s.do(http.MethodGet, "/api/v1/bridge/channels?"+middleware.AccessTokenQueryParam+"="+token, "", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRoutes_CreatePrintJobIdempotent(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, uuid.New(), PermissionManagePrinter)
	bill := `{"billNumber":"INV-11","items":[{"product_name":"Rice","quantity":1,"rate":60,"gst_percentage":5}]}`

	if w := s.do(http.MethodPost, "/api/v1/print-jobs", token, bill, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing key: status = %d, want 400", w.Code)
	}

	headers := map[string]string{middleware.IdempotencyKeyHeader: "bill-INV-11"}
	first := s.do(http.MethodPost, "/api/v1/print-jobs", token, bill, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status = %d (%s)", first.Code, first.Body.String())
	}
	second := s.do(http.MethodPost, "/api/v1/print-jobs", token, bill, headers)
	if second.Code != http.StatusCreated || second.Header().Get(middleware.IdempotencyReplayedHeader) != "true" {
		t.Fatalf("replay: status = %d headers = %v", second.Code, second.Header())
	}

	status, err := s.queue.GetPrintQueue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Pending != 1 {
		t.Errorf("pending = %d, want 1", status.Pending)
	}
}
