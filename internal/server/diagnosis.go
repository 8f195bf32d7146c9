package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/connectedlabs/lab-instrument-gateway/internal/diagnose"
)

type diagnosisRequest struct {
	InstrumentID string   `json:"instrument_id"`
	Symptoms     []string `json:"symptoms"`
	ErrorCodes   []string `json:"error_codes"`
}

func (s *Server) handleDiagnosis(c *fiber.Ctx) error {
	var req diagnosisRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.InstrumentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "instrument_id is required",
		})
	}
	if len(req.Symptoms) == 0 && len(req.ErrorCodes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one symptom or error code is required",
		})
	}

	logs, err := s.Logs.Recent(req.InstrumentID, "", 50)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Diagnosis failed",
			"message": err.Error(),
		})
	}

	result := diagnose.Diagnose(req.InstrumentID, req.Symptoms, req.ErrorCodes, logs)

	return c.JSON(fiber.Map{
		"success":   true,
		"diagnosis": result,
		"timestamp": now(),
	})
}
