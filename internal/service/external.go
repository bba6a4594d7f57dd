package service

import (
	"encoding/json"
	"strconv"
	"time"

	"farmlokal/internal/biz"
	"farmlokal/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// ExternalService handles traffic to and from external collaborators: the
// upstream data provider and inbound webhook deliveries.
type ExternalService struct {
	upstream *biz.UpstreamUsecase
	webhooks *biz.WebhookUsecase
	logger   *log.Helper
}

// NewExternalService creates a new external service.
func NewExternalService(upstream *biz.UpstreamUsecase, webhooks *biz.WebhookUsecase, logger log.Logger) *ExternalService {
	return &ExternalService{
		upstream: upstream,
		webhooks: webhooks,
		logger:   log.NewHelper(logger),
	}
}

// webhookRequest is the inbound delivery payload. Data is kept schemaless;
// each handler extracts what it needs.
type webhookRequest struct {
	EventID   string                 `json:"eventId"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

type webhookReply struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"eventId"`
}

type circuitStatusReply struct {
	State string `json:"state"`
}

// FetchFromAPIA handles GET /external/api-a/{id}. The upstream payload is
// passed through untouched.
func (s *ExternalService) FetchFromAPIA(ctx khttp.Context) error {
	raw := ctx.Vars().Get("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return biz.ErrInvalidProductID
	}

	payload, err := s.upstream.FetchProduct(ctx, id)
	if err != nil {
		return err
	}

	return ctx.Result(200, json.RawMessage(payload))
}

// IngestWebhook handles POST /external/webhook. Deliveries without an event
// id get a generated one, which makes them unconditionally unique; only
// senders that supply stable ids benefit from de-duplication.
func (s *ExternalService) IngestWebhook(ctx khttp.Context) error {
	var req webhookRequest
	if err := ctx.Bind(&req); err != nil {
		return biz.ErrMissingEventID
	}

	if req.EventID == "" {
		req.EventID = uuid.NewString()
		s.logger.Warnw("webhook delivery without event id", "generated", req.EventID)
	}

	event := &model.WebhookEvent{
		EventID:   req.EventID,
		Type:      req.Type,
		Data:      req.Data,
		Timestamp: req.Timestamp,
	}

	processed, err := s.webhooks.ProcessEvent(ctx, event)
	if err != nil {
		return err
	}

	return ctx.Result(200, &webhookReply{
		Received:  true,
		Duplicate: !processed,
		EventID:   req.EventID,
	})
}

// CircuitStatus handles GET /external/circuit-status.
func (s *ExternalService) CircuitStatus(ctx khttp.Context) error {
	return ctx.Result(200, &circuitStatusReply{State: string(s.upstream.BreakerState())})
}

// AwaitCallback handles GET /external/await-callback/{callbackId}. It blocks
// until a matching callback.response delivery arrives or the wait times out.
func (s *ExternalService) AwaitCallback(ctx khttp.Context) error {
	callbackID := ctx.Vars().Get("callbackId")
	if callbackID == "" {
		return biz.ErrMissingEventID
	}

	start := time.Now()
	data, err := s.webhooks.RegisterCallback(ctx, callbackID)
	if err != nil {
		return err
	}

	s.logger.Infow("callback resolved",
		"callback_id", callbackID,
		"waited", time.Since(start))

	return ctx.Result(200, data)
}
