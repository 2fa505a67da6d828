package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/repository"
)

const defaultStatsLimit = 20

// AdminHandler exposes the operator surface: the delivery switch and a
// queue overview.
type AdminHandler struct {
	settings repository.SettingsRepository
	pending  repository.PendingRepository
}

func NewAdminHandler(settings repository.SettingsRepository, pending repository.PendingRepository) (*AdminHandler, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if pending == nil {
		return nil, fmt.Errorf("pending repository is required")
	}
	return &AdminHandler{settings: settings, pending: pending}, nil
}

func RegisterAdminRoutes(router fiber.Router, settings repository.SettingsRepository, pending repository.PendingRepository) error {
	h, err := NewAdminHandler(settings, pending)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/service/enable", h.EnableService)
	v1.Post("/service/disable", h.DisableService)
	v1.Get("/queue/stats", h.QueueStats)

	return nil
}

func (h *AdminHandler) EnableService(c *fiber.Ctx) error {
	return h.setServiceFlag(c, true)
}

func (h *AdminHandler) DisableService(c *fiber.Ctx) error {
	return h.setServiceFlag(c, false)
}

func (h *AdminHandler) setServiceFlag(c *fiber.Ctx, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}

	if err := h.settings.Set(c.Context(), domain.SettingServiceEnabled, value); err != nil {
		return fmt.Errorf("failed to update service flag: %w", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"serviceEnabled": enabled,
	})
}

type queueStatItem struct {
	RecipientID     int64     `json:"recipientId"`
	DisplayName     string    `json:"displayName,omitempty"`
	ItemCount       int       `json:"itemCount"`
	OldestMentionAt time.Time `json:"oldestMentionAt"`
}

func (h *AdminHandler) QueueStats(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultStatsLimit)

	stats, err := h.pending.Stats(c.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to load queue stats: %w", err)
	}

	out := make([]queueStatItem, 0, len(stats))
	for _, s := range stats {
		out = append(out, queueStatItem{
			RecipientID:     s.RecipientID,
			DisplayName:     s.DisplayName,
			ItemCount:       s.ItemCount,
			OldestMentionAt: s.OldestMentionAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": out})
}
