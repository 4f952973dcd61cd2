package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotifierClient pushes SMS/push notifications through the notification
// service. All calls are fire-and-forget: a lost notification never blocks a
// state transition.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifierClient(baseURL string, log *zap.Logger) *NotifierClient {
	return &NotifierClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type notifyRequest struct {
	UserID   string         `json:"user_id"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

func (c *NotifierClient) Notify(ctx context.Context, userID uuid.UUID, template string, data map[string]any) {
	body, err := json.Marshal(notifyRequest{
		UserID:   userID.String(),
		Template: template,
		Data:     data,
	})
	if err != nil {
		c.log.Warn("notify marshal failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/notify", bytes.NewReader(body))
	if err != nil {
		c.log.Warn("notify request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("notifier unavailable", zap.String("template", template), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("notifier rejected", zap.String("template", template), zap.Int("status", resp.StatusCode))
	}
}
