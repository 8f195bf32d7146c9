package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/connectedlabs/lab-instrument-gateway/internal/alerts"
	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

func (s *Server) handleIngestAlert(c *fiber.Ctx) error {
	var a domain.Alert
	if err := c.BodyParser(&a); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "invalid alert body",
			"timestamp": now(),
		})
	}

	stored, err := s.Alerts.Ingest(a)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     err.Error(),
			"timestamp": now(),
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"alertId":   stored.ID,
		"timestamp": now(),
	})
}

func (s *Server) handleQueryAlerts(c *fiber.Ctx) error {
	matched, total := s.Alerts.Query(alerts.Filter{
		InstrumentID: c.Query("instrument_id"),
		Severity:     c.Query("severity"),
		Limit:        c.QueryInt("limit", 50),
	})
	return c.JSON(fiber.Map{
		"success":   true,
		"count":     len(matched),
		"total":     total,
		"alerts":    matched,
		"timestamp": now(),
	})
}

func (s *Server) handleAlertStats(c *fiber.Ctx) error {
	st := s.Alerts.Stats(time.Now().UTC())
	return c.JSON(fiber.Map{
		"success":   true,
		"stats":     st,
		"timestamp": now(),
	})
}

func (s *Server) handlePurgeAlerts(c *fiber.Ctx) error {
	removed := s.Alerts.Purge()
	return c.JSON(fiber.Map{
		"success":   true,
		"removed":   removed,
		"timestamp": now(),
	})
}
