package server

import (
	"github.com/gofiber/fiber/v2"
)

// handleScan fans probes out over the configured address space and returns
// once the whole batch has settled. An empty result is not an error; it
// just means nothing answered.
func (s *Server) handleScan(c *fiber.Ctx) error {
	instruments := s.Scanner.Scan(c.UserContext(), s.ScanHosts)
	return c.JSON(fiber.Map{
		"success":     true,
		"count":       len(instruments),
		"instruments": instruments,
		"timestamp":   now(),
	})
}
