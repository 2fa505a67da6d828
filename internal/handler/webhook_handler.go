package handler

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/queue"
	"go.uber.org/zap"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookHandler accepts tracker callbacks, verifies their signature,
// and hands the normalized event to the broker. The handler never
// blocks on queue state; ingestion happens in the worker.
type WebhookHandler struct {
	publisher  queue.Publisher
	secret     []byte
	skipVerify bool
	logger     *zap.Logger
}

func NewWebhookHandler(publisher queue.Publisher, secret string, skipVerify bool, logger *zap.Logger) (*WebhookHandler, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if strings.TrimSpace(secret) == "" && !skipVerify {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{
		publisher:  publisher,
		secret:     []byte(secret),
		skipVerify: skipVerify,
		logger:     logger,
	}, nil
}

func RegisterWebhookRoutes(router fiber.Router, publisher queue.Publisher, secret string, skipVerify bool, logger *zap.Logger) error {
	h, err := NewWebhookHandler(publisher, secret, skipVerify, logger)
	if err != nil {
		return err
	}

	router.Post("/v1/webhook", h.HandleWebhook)
	return nil
}

// webhookPayload is the tolerant inbound shape. Unknown fields and
// unknown event names are accepted; only the fields below matter.
type webhookPayload struct {
	Event    string `json:"event"`
	ActorID  int64  `json:"actor_id"`
	WorkItem struct {
		ID       int64            `json:"id"`
		Title    string           `json:"title"`
		Comments []webhookComment `json:"comments"`
	} `json:"work_item"`
}

type webhookComment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Mentions  []int64   `json:"mentions"`
}

func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()

	if !h.verifySignature(body, c.Get(signatureHeader)) {
		h.logger.Warn("webhook signature rejected")
		return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed payload")
	}
	if payload.WorkItem.ID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "work item id is required")
	}

	ev := payload.toDomain()
	msg := queue.MessageFromDomain(ev, uuid.NewString())

	if err := h.publisher.Publish(c.Context(), queue.EventsQueue, msg); err != nil {
		h.logger.Error("failed to publish webhook event",
			zap.Int64("workItemId", ev.WorkItemID),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to accept event")
	}

	return c.SendStatus(fiber.StatusOK)
}

// verifySignature accepts both "sha1=<hex>" and a bare hex digest, and
// compares in constant time.
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	if h.skipVerify {
		return true
	}

	signature := strings.TrimSpace(header)
	signature = strings.TrimPrefix(signature, "sha1=")
	if signature == "" {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, h.secret)
	mac.Write(body)

	return hmac.Equal(provided, mac.Sum(nil))
}

func (p *webhookPayload) toDomain() domain.Event {
	comments := make([]domain.Comment, 0, len(p.WorkItem.Comments))
	for _, c := range p.WorkItem.Comments {
		comments = append(comments, domain.Comment{
			ID:                    c.ID,
			Text:                  c.Text,
			AuthorID:              c.AuthorID,
			CreatedAt:             c.CreatedAt.UTC(),
			MentionedRecipientIDs: c.Mentions,
		})
	}

	return domain.Event{
		Type:          domain.ParseEventTypeFromString(p.Event),
		WorkItemID:    p.WorkItem.ID,
		WorkItemTitle: p.WorkItem.Title,
		ActorID:       p.ActorID,
		Comments:      comments,
		OccurredAt:    time.Now().UTC(),
	}
}
