package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/mention-relay/internal/domain"
	"github.com/kursadbilgin/mention-relay/internal/repository"
)

type RecipientHandler struct {
	recipients repository.RecipientRepository
}

func NewRecipientHandler(recipients repository.RecipientRepository) (*RecipientHandler, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipient repository is required")
	}
	return &RecipientHandler{recipients: recipients}, nil
}

func RegisterRecipientRoutes(router fiber.Router, recipients repository.RecipientRepository) error {
	h, err := NewRecipientHandler(recipients)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Put("/recipients/:id", h.UpsertRecipient)
	v1.Get("/recipients/:id", h.GetRecipient)
	v1.Get("/recipients", h.ListRecipients)

	return nil
}

type upsertRecipientRequest struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
}

type recipientResponse struct {
	ID          int64     `json:"id"`
	Address     string    `json:"address"`
	DisplayName string    `json:"displayName,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *RecipientHandler) UpsertRecipient(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid recipient id")
	}

	var req upsertRecipientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed payload")
	}

	phone := req.Phone
	if phone != "" {
		phone = domain.NormalizePhoneE164(phone)
		if phone == "" {
			return fiber.NewError(fiber.StatusBadRequest, "invalid phone number")
		}
	}

	recipient := &domain.Recipient{
		ID:          int64(id),
		Address:     req.Address,
		DisplayName: req.DisplayName,
		Phone:       phone,
	}

	if err := h.recipients.Upsert(c.Context(), recipient); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}

	return c.Status(fiber.StatusOK).JSON(toRecipientResponse(recipient))
}

func (h *RecipientHandler) GetRecipient(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid recipient id")
	}

	recipient, err := h.recipients.GetByID(c.Context(), int64(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "recipient not found")
		}
		return fmt.Errorf("failed to get recipient: %w", err)
	}

	return c.Status(fiber.StatusOK).JSON(toRecipientResponse(recipient))
}

func (h *RecipientHandler) ListRecipients(c *fiber.Ctx) error {
	recipients, err := h.recipients.List(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list recipients: %w", err)
	}

	out := make([]recipientResponse, 0, len(recipients))
	for i := range recipients {
		out = append(out, toRecipientResponse(&recipients[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": out})
}

func toRecipientResponse(r *domain.Recipient) recipientResponse {
	return recipientResponse{
		ID:          r.ID,
		Address:     r.Address,
		DisplayName: r.DisplayName,
		Phone:       r.Phone,
		UpdatedAt:   r.UpdatedAt,
	}
}
