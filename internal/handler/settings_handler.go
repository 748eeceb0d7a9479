package handler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	"github.com/kursadbilgin/purchase-notifier/internal/settings"
)

type SettingsService interface {
	DiscConfig(ctx context.Context) (registration.Config, error)
	UpdateDiscConfig(ctx context.Context, url, apiKey *string) error
}

type SettingsHandler struct {
	service SettingsService
}

func NewSettingsHandler(service SettingsService) (*SettingsHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("settings service is required")
	}
	return &SettingsHandler{service: service}, nil
}

func RegisterSettingsRoutes(router fiber.Router, service SettingsService) error {
	h, err := NewSettingsHandler(service)
	if err != nil {
		return err
	}

	router.Get("/settings/disc", h.GetDiscSettings)
	router.Put("/settings/disc", h.UpdateDiscSettings)
	return nil
}

type discSettingsRequest struct {
	APIURL *string `json:"apiUrl"`
	APIKey *string `json:"apiKey"`
}

type discSettingsResponse struct {
	APIURL     string `json:"apiUrl"`
	APIKey     string `json:"apiKey"`
	Configured bool   `json:"configured"`
}

func (h *SettingsHandler) GetDiscSettings(c *fiber.Ctx) error {
	cfg, err := h.service.DiscConfig(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDiscSettingsResponse(cfg))
}

func (h *SettingsHandler) UpdateDiscSettings(c *fiber.Ctx) error {
	var req discSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.APIURL != nil {
		if raw := strings.TrimSpace(*req.APIURL); raw != "" {
			parsed, err := url.Parse(raw)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				return toHTTPError(fmt.Errorf("%w: apiUrl must be an absolute http(s) URL", domain.ErrValidation))
			}
		}
	}

	ctx := requestContext(c)
	if err := h.service.UpdateDiscConfig(ctx, req.APIURL, req.APIKey); err != nil {
		return toHTTPError(err)
	}

	cfg, err := h.service.DiscConfig(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toDiscSettingsResponse(cfg))
}

func toDiscSettingsResponse(cfg registration.Config) discSettingsResponse {
	return discSettingsResponse{
		APIURL:     cfg.URL,
		APIKey:     settings.MaskSecret(cfg.APIKey),
		Configured: cfg.URL != "",
	}
}
