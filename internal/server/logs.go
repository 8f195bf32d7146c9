package server

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/connectedlabs/lab-instrument-gateway/internal/detect"
	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
	"github.com/connectedlabs/lab-instrument-gateway/internal/mock"
)

// handleCollectLogs accepts a single log line or a {"logs": [...]} batch.
func (s *Server) handleCollectLogs(c *fiber.Ctx) error {
	body := c.Body()

	var batch struct {
		Logs []domain.LogEntry `json:"logs"`
	}
	var entries []domain.LogEntry
	if err := json.Unmarshal(body, &batch); err != nil || len(batch.Logs) == 0 {
		var single domain.LogEntry
		if err := json.Unmarshal(body, &single); err != nil || single.InstrumentID == "" || single.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid format. Expected 'logs' array or single log object",
			})
		}
		entries = []domain.LogEntry{single}
	} else {
		entries = batch.Logs
	}

	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = time.Now().UTC()
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	inserted, err := s.Logs.Insert(entries)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to store logs",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"received_logs": len(entries),
		"inserted_logs": inserted,
		"timestamp":     now(),
		"status":        "logs_stored",
	})
}

func (s *Server) handleQueryLogs(c *fiber.Ctx) error {
	entries, err := s.Logs.Recent(c.Query("instrument_id"), c.Query("level"), c.QueryInt("limit", 100))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to retrieve logs",
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"count":     len(entries),
		"logs":      entries,
		"timestamp": now(),
	})
}

func (s *Server) handleSeedMockData(c *fiber.Ctx) error {
	hoursBack := c.QueryInt("hours_back", 24)
	logsPerHour := c.QueryInt("logs_per_hour", 20)

	logs := s.Gen.HistoricalLogs(hoursBack, logsPerHour, 0.05)
	inserted, err := s.Logs.Insert(logs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to seed mock data",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"generated_logs": len(logs),
		"inserted_logs":  inserted,
		"instruments":    mock.InstrumentIDs(),
		"hours_back":     hoursBack,
		"logs_per_hour":  logsPerHour,
		"timestamp":      now(),
		"message":        "Mock data seeded successfully",
	})
}

func (s *Server) handleAnomalyScenario(c *fiber.Ctx) error {
	scenario := c.Query("scenario", "temp_spike")

	logs := s.Gen.AnomalyScenario(scenario, c.Query("instrument_id"))
	if logs == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown scenario: " + scenario,
		})
	}

	inserted, err := s.Logs.Insert(logs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to generate anomaly scenario",
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"scenario":       scenario,
		"generated_logs": len(logs),
		"inserted_logs":  inserted,
		"timestamp":      now(),
		"message":        "Anomaly scenario '" + scenario + "' generated successfully",
	})
}

// handleDetectAnomalies runs the statistical rules on demand, feeding every
// hit straight into the alert store (which fans it out to subscribers).
func (s *Server) handleDetectAnomalies(c *fiber.Ctx) error {
	var req struct {
		InstrumentID string `json:"instrument_id"`
	}
	// Body is optional; absence means "analyze everything".
	_ = c.BodyParser(&req)

	instruments := mock.InstrumentIDs()
	if req.InstrumentID != "" {
		instruments = []string{req.InstrumentID}
	}

	nowT := time.Now().UTC()
	var all []domain.Alert
	health := make(map[string]detect.Health)

	for _, id := range instruments {
		logs, err := s.Logs.Recent(id, "", 200)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Anomaly detection failed",
				"message": err.Error(),
			})
		}
		if len(logs) == 0 {
			continue
		}

		for _, a := range detect.Detect(logs, nowT) {
			if stored, err := s.Alerts.Ingest(a); err == nil {
				all = append(all, stored)
			}
		}
		health[id] = detect.AnalyzeHealth(logs)
	}

	return c.JSON(fiber.Map{
		"success":              true,
		"instruments_analyzed": len(instruments),
		"anomalies_detected":   len(all),
		"anomalies":            all,
		"health_reports":       health,
		"timestamp":            now(),
		"detection_methods":    detect.Methods,
	})
}
