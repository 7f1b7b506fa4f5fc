package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	webhooksvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/webhook"
	httperrors "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/transport/http/errors"
	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/wayforpay"
)

// Gateway callbacks are small JSON objects; anything bigger is noise.
const maxWebhookBody = 1 << 20

// WebhookHandler is the gateway's service URL. It answers 200 with a signed
// ack no matter what arrived: the reconciler decides inside what to do with
// the payload, and the gateway only needs to hear "stop retrying".
type WebhookHandler struct {
	service *webhooksvc.Service
	logger  *zap.Logger
}

func NewWebhookHandler(service *webhooksvc.Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{service: service, logger: logger}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("read webhook body", zap.Error(err))
		body = nil
	}

	var ack wayforpay.Ack
	if h.service != nil {
		ack = h.service.Process(r.Context(), body)
	}

	httperrors.Write(w, http.StatusOK, ack)
}
