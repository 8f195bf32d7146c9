package server

import (
	"github.com/gofiber/fiber/v2"
)

type commandRequest struct {
	Command    string             `json:"command"`
	Parameters map[string]float64 `json:"parameters"`
}

// handleSubmitCommand validates synchronously and acks as soon as the record
// is queued; the response never waits on execution.
func (s *Server) handleSubmitCommand(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"error":     "invalid request body",
			"timestamp": now(),
		})
	}
	if req.Parameters == nil {
		req.Parameters = map[string]float64{}
	}

	cmd, err := s.Queue.Submit(c.Params("id"), req.Command, req.Parameters)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"error":     err.Error(),
			"timestamp": now(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success":   true,
		"commandId": cmd.ID,
		"message":   "Command queued for execution",
		"timestamp": now(),
	})
}

func (s *Server) handleGetCommand(c *fiber.Ctx) error {
	cmd := s.Queue.Get(c.Params("commandId"))
	if cmd == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success":   false,
			"error":     "Command not found",
			"timestamp": now(),
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"command":   cmd,
		"timestamp": now(),
	})
}

func (s *Server) handleListCommands(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	cmds := s.Queue.ForInstrument(c.Params("id"), limit)
	return c.JSON(fiber.Map{
		"success":   true,
		"commands":  cmds,
		"count":     len(cmds),
		"timestamp": now(),
	})
}
