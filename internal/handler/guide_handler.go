package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/IUBLibTech/ipguide/internal/index"
	"github.com/IUBLibTech/ipguide/internal/model"
	"github.com/IUBLibTech/ipguide/internal/service"
)

type GuideService interface {
	Lookup(ctx context.Context, ip string) (*model.LookupResponse, error)
	ASN(asn int) (*model.ASNEntry, error)
	Country(code string) ([]int, error)
	Networks(specs []string) ([]string, error)
	Ready() bool
}

type Handler struct {
	service GuideService
	logger  *zap.Logger
}

func NewHandler(service GuideService, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/v1/lookup/:ip", h.LookupIP)
	app.Get("/api/v1/asn/:asn", h.LookupASN)
	app.Get("/api/v1/country/:code", h.LookupCountry)
	app.Post("/api/v1/networks", h.ResolveNetworks)
	app.Get("/api/v1/health", h.HealthCheck)
}

func (h *Handler) LookupIP(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: "IP address is required",
		})
	}

	result, err := h.service.Lookup(c.Context(), ip)
	if err != nil {
		if errors.Is(err, index.ErrInvalidAddress) {
			return c.Status(fiber.StatusBadRequest).JSON(model.Error{
				Message: fmt.Sprintf("Invalid IP address format: %s", ip),
			})
		}
		if errors.Is(err, service.ErrNotReady) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(model.Error{
				Message: "Network index is still loading",
			})
		}

		h.logger.Error("IP lookup failed",
			zap.String("ip", ip),
			zap.Error(err))

		return c.Status(fiber.StatusInternalServerError).JSON(model.Error{
			Message: "Failed to lookup IP address",
		})
	}

	if result == nil {
		return c.Status(fiber.StatusNotFound).JSON(model.Error{
			Message: "No network information found for this IP",
		})
	}

	return c.JSON(result)
}

func (h *Handler) LookupASN(c *fiber.Ctx) error {
	asn, err := strconv.Atoi(c.Params("asn"))
	if err != nil || asn < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: fmt.Sprintf("Invalid ASN: %s", c.Params("asn")),
		})
	}

	entry, err := h.service.ASN(asn)
	if err != nil {
		return h.serviceError(c, err)
	}
	if entry == nil {
		return c.Status(fiber.StatusNotFound).JSON(model.Error{
			Message: fmt.Sprintf("Unknown ASN: %d", asn),
		})
	}

	return c.JSON(entry)
}

func (h *Handler) LookupCountry(c *fiber.Ctx) error {
	code := c.Params("code")

	asns, err := h.service.Country(code)
	if err != nil {
		return h.serviceError(c, err)
	}
	if asns == nil {
		asns = []int{}
	}

	return c.JSON(model.CountryResponse{
		Country: code,
		ASNs:    asns,
	})
}

func (h *Handler) ResolveNetworks(c *fiber.Ctx) error {
	var req model.NetworksRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: "Request body must be JSON with a specifiers list",
		})
	}

	networks, err := h.service.Networks(req.Specifiers)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			return h.serviceError(c, err)
		}
		// A malformed specifier: the unresolved list came back with
		// the error, report both rather than failing silently.
		h.logger.Warn("specifier resolution failed",
			zap.Strings("specifiers", req.Specifiers),
			zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(model.Error{
			Message: err.Error(),
		})
	}
	if networks == nil {
		networks = []string{}
	}

	return c.JSON(model.NetworksResponse{Networks: networks})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status := "healthy"
	if !h.service.Ready() {
		status = "loading"
	}
	return c.JSON(fiber.Map{
		"status": status,
	})
}

func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrNotReady) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(model.Error{
			Message: "Network index is still loading",
		})
	}
	h.logger.Error("request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(model.Error{
		Message: "Internal error",
	})
}
