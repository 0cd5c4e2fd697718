// Package bridge is the allow-listed command and event surface between the
// billing tab and the host. It does not know about transports; the HTTP,
// SSE and WebSocket handlers sit on top of it.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"go.uber.org/zap"
)

// Handler serves one channel. payload is the raw JSON argument, possibly empty.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Bridge dispatches invocations to registered channel handlers. A channel
// that was never registered is rejected.
type Bridge struct {
	handlers map[string]Handler
	validate *validator.Validate
	logger   *zap.Logger
}

// New creates an empty bridge. Request structs are validated with their
// `binding` tags, the same tags gin uses on the REST side.
func New(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	if err := utils.RegisterGSTIN(v); err != nil {
		logger.Error("failed to register gstin validation", zap.Error(err))
	}

	return &Bridge{
		handlers: make(map[string]Handler),
		validate: v,
		logger:   logger.With(zap.String("component", "bridge")),
	}
}

// Handle registers h for channel, replacing any earlier handler.
func (b *Bridge) Handle(channel string, h Handler) {
	b.handlers[channel] = h
}

// Allowed reports whether channel is on the allow-list.
func (b *Bridge) Allowed(channel string) bool {
	_, ok := b.handlers[channel]
	return ok
}

// Channels returns the allow-list in sorted order.
func (b *Bridge) Channels() []string {
	out := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke runs the handler for channel. A panicking handler is reported as
// the print system being unavailable so the caller never hangs.
func (b *Bridge) Invoke(ctx context.Context, channel string, payload json.RawMessage) (result any, err error) {
	h, ok := b.handlers[channel]
	if !ok {
		b.logger.Warn("rejected bridge channel", zap.String("channel", channel))
		return nil, apperror.ErrChannelNotAllowed
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bridge handler panicked",
				zap.String("channel", channel),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			result, err = nil, apperror.ErrPrintUnavailable
		}
	}()

	return h(ctx, payload)
}

// Validate checks v against its binding tags.
func (b *Bridge) Validate(v any) error {
	err := b.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewBadRequestError("Invalid payload")
	}
	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{
			Field:   trimRoot(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return apperror.NewValidationError(fields)
}

// Typed adapts a function taking a decoded request into a Handler. An empty
// or null payload decodes to the zero request.
func Typed[Req, Resp any](b *Bridge, fn func(ctx context.Context, req *Req) (Resp, error)) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req Req
		if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &req); err != nil {
				return nil, apperror.NewBadRequestError("Invalid payload: " + err.Error())
			}
		}
		if reflect.ValueOf(req).Kind() == reflect.Struct {
			if err := b.Validate(&req); err != nil {
				return nil, err
			}
		}
		return fn(ctx, &req)
	}
}

// NoArgs adapts a function without arguments into a Handler. Any payload is
// ignored.
func NoArgs[Resp any](fn func(ctx context.Context) (Resp, error)) Handler {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}

// trimRoot drops the struct name validator puts in front of every namespace.
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gstin":
		return "is not a valid GSTIN"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
