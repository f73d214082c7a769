package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/metrics"
	"github.com/Lumenline/optimizer-dashboard/internal/runs"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

// WebhookHandler handles result postings from the external optimizer.
type WebhookHandler struct {
	logger    *zap.Logger
	runs      *runs.Service
	secret    string
	sigHeader string
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables
// signature validation (local development only).
func NewWebhookHandler(logger *zap.Logger, svc *runs.Service, secret, sigHeader string) *WebhookHandler {
	if strings.TrimSpace(sigHeader) == "" {
		sigHeader = "X-Optimizer-Signature"
	}
	return &WebhookHandler{
		logger:    logger,
		runs:      svc,
		secret:    secret,
		sigHeader: sigHeader,
	}
}

// HandleResultPosting processes optimizer run results.
// POST /webhooks/optimizer/results
func (h *WebhookHandler) HandleResultPosting(c *fiber.Ctx) error {
	body := c.Body()

	if h.secret != "" {
		signature := c.Get(h.sigHeader)
		if signature == "" || !validateWebhookSignature(h.secret, signature, body) {
			h.logger.Warn("webhook.invalid_signature",
				zap.String("header", h.sigHeader),
				zap.String("run_id", gjson.GetBytes(body, "run_id").String()))
			metrics.IncWebhook("invalid_signature")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid signature",
			})
		}
	}

	var posting model.ResultPosting
	if err := c.BodyParser(&posting); err != nil {
		h.logger.Warn("webhook.parse_error",
			zap.Error(err),
			zap.String("body", string(body)))
		metrics.IncWebhook("invalid_payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}
	if err := posting.Validate(); err != nil {
		metrics.IncWebhook("invalid_payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.Info("webhook.received",
		zap.String("run_id", posting.RunID),
		zap.String("status", posting.Status),
		zap.String("project_id", posting.ProjectID))

	if err := h.runs.RecordResult(c.UserContext(), &posting, "webhook"); err != nil {
		h.logger.Error("webhook.record_failed",
			zap.String("run_id", posting.RunID),
			zap.Error(err))
		metrics.IncWebhook("store_error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to record result",
		})
	}

	metrics.IncWebhook("ok")
	return c.SendStatus(fiber.StatusOK)
}

func validateWebhookSignature(secret, signature string, body []byte) bool {
	normalized := strings.TrimSpace(signature)
	if strings.HasPrefix(strings.ToLower(normalized), "sha256=") {
		normalized = normalized[7:]
	}
	expected, err := hex.DecodeString(normalized)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	actual := mac.Sum(nil)
	return hmac.Equal(actual, expected)
}
