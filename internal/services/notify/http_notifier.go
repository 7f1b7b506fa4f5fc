package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPNotifier pushes billing events to the bot's internal notification
// endpoint. Fire and forget: failures are logged and dropped.
type HTTPNotifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPNotifier(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (n *HTTPNotifier) NotifyUser(ctx context.Context, ev Event) {
	if n.endpoint == "" || ev.UserID <= 0 {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("marshal bot notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("create bot notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("deliver bot notification",
			zap.Int64("user_id", ev.UserID),
			zap.String("kind", ev.Kind),
			zap.Error(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		n.logger.Warn("bot notification rejected",
			zap.Int64("user_id", ev.UserID),
			zap.String("kind", ev.Kind),
			zap.Int("status", resp.StatusCode))
	}
}
