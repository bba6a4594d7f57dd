package biz

import (
	"context"
	"sync"
	"time"

	"farmlokal/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// callbackTimeout bounds how long a caller waits for an asynchronous webhook
// response before giving up.
const callbackTimeout = 30 * time.Second

// Typed webhook outcomes.
var (
	// ErrMissingEventID is returned for events without an identity.
	ErrMissingEventID = errors.BadRequest("MISSING_EVENT_ID", "webhook event id is required")
	// ErrCallbackTimeout is returned when no callback.response event
	// arrives within the wait window.
	ErrCallbackTimeout = errors.New(504, "CALLBACK_TIMEOUT", "webhook callback timed out")
)

// EventLedgerRepo defines the TTL-bounded set used for de-duplication.
type EventLedgerRepo interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// EventHandler processes one webhook event of a given type.
type EventHandler func(ctx context.Context, event *model.WebhookEvent) error

// WebhookUsecase de-duplicates inbound webhook events against the ledger and
// dispatches them to type-keyed handlers.
//
// The membership check and the insertion are deliberately not one atomic
// step: delivery is at-least-once and the narrow race window can admit a very
// rare duplicate dispatch, which handlers must tolerate. This is an accepted
// trade-off, not a defect to engineer around.
type WebhookUsecase struct {
	ledger   EventLedgerRepo
	handlers map[string]EventHandler

	// pending maps callback ids to the channel a caller is waiting on.
	// Shared across concurrent requests within one process.
	mu      sync.Mutex
	pending map[string]chan map[string]interface{}

	logger *log.Helper
}

// NewWebhookUsecase creates a webhook use case with the default handlers
// registered.
func NewWebhookUsecase(ledger EventLedgerRepo, products *ProductUsecase, logger log.Logger) *WebhookUsecase {
	uc := &WebhookUsecase{
		ledger:   ledger,
		handlers: make(map[string]EventHandler),
		pending:  make(map[string]chan map[string]interface{}),
		logger:   log.NewHelper(logger),
	}

	uc.RegisterHandler("order.completed", uc.handleOrderCompleted)
	uc.RegisterHandler("product.updated", func(ctx context.Context, event *model.WebhookEvent) error {
		return uc.handleProductUpdated(ctx, event, products)
	})
	uc.RegisterHandler("callback.response", uc.handleCallbackResponse)

	return uc
}

// RegisterHandler binds an event type to a handler. Not safe for concurrent
// use; call during wiring only.
func (uc *WebhookUsecase) RegisterHandler(eventType string, h EventHandler) {
	uc.handlers[eventType] = h
}

// ProcessEvent reports whether the event was newly processed (true) or was a
// duplicate (false, no side effect).
//
// When the ledger is unreachable the event is treated as new and dispatched:
// at-least-once delivery wins over strict de-duplication.
func (uc *WebhookUsecase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	if event == nil || event.EventID == "" {
		return false, ErrMissingEventID
	}

	processed, err := uc.ledger.IsProcessed(ctx, event.EventID)
	if err != nil {
		uc.logger.Warnf("event ledger unavailable: %v (dispatching without dedup)", err)
	} else if processed {
		uc.logger.Warnw("duplicate webhook event ignored", "event_id", event.EventID)
		return false, nil
	}

	if err := uc.ledger.MarkProcessed(ctx, event.EventID); err != nil {
		uc.logger.Warnf("failed to record event %s in ledger: %v", event.EventID, err)
	}

	handler, ok := uc.handlers[event.Type]
	if !ok {
		// Unknown types are logged and ignored, not an error.
		uc.logger.Warnw("unknown webhook event type", "event_id", event.EventID, "type", event.Type)
		return true, nil
	}

	if err := handler(ctx, event); err != nil {
		uc.logger.Errorw("webhook handler failed",
			"event_id", event.EventID,
			"type", event.Type,
			"error", err)
		return true, err
	}

	uc.logger.Infow("webhook event processed", "event_id", event.EventID, "type", event.Type)
	return true, nil
}

// RegisterCallback waits for an asynchronous callback.response event carrying
// the given callback id. The registration is removed on delivery, timeout or
// cancellation.
func (uc *WebhookUsecase) RegisterCallback(ctx context.Context, callbackID string) (map[string]interface{}, error) {
	ch := make(chan map[string]interface{}, 1)

	uc.mu.Lock()
	uc.pending[callbackID] = ch
	uc.mu.Unlock()

	defer func() {
		uc.mu.Lock()
		delete(uc.pending, callbackID)
		uc.mu.Unlock()
	}()

	select {
	case data := <-ch:
		return data, nil
	case <-time.After(callbackTimeout):
		uc.logger.Warnw("webhook callback timed out", "callback_id", callbackID)
		return nil, ErrCallbackTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (uc *WebhookUsecase) handleOrderCompleted(_ context.Context, event *model.WebhookEvent) error {
	uc.logger.Infow("order completed", "order_id", event.Data["orderId"])
	return nil
}

// handleProductUpdated evicts the cache entries of an externally mutated
// product so the next read reflects the change.
func (uc *WebhookUsecase) handleProductUpdated(ctx context.Context, event *model.WebhookEvent, products *ProductUsecase) error {
	id := int64(0)
	// JSON numbers arrive as float64.
	if v, ok := event.Data["productId"].(float64); ok {
		id = int64(v)
	}

	uc.logger.Infow("product updated", "product_id", id)

	if products == nil {
		return nil
	}
	return products.InvalidateProduct(ctx, id)
}

func (uc *WebhookUsecase) handleCallbackResponse(_ context.Context, event *model.WebhookEvent) error {
	callbackID, _ := event.Data["callbackId"].(string)
	if callbackID == "" {
		uc.logger.Warnw("callback.response without callback id", "event_id", event.EventID)
		return nil
	}

	uc.mu.Lock()
	ch, ok := uc.pending[callbackID]
	if ok {
		delete(uc.pending, callbackID)
	}
	uc.mu.Unlock()

	if !ok {
		uc.logger.Warnw("no pending callback for response", "callback_id", callbackID)
		return nil
	}

	ch <- event.Data
	return nil
}
