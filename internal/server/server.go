// Package server is the reverse proxy gateway: every browser request to an
// instrument passes through here, either via the generic header-driven
// proxy or via the structured routes with typed validation and a uniform
// envelope. It also hosts the command queue, alert store, log service,
// diagnosis endpoint, scanner and push channel.
package server

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"github.com/connectedlabs/lab-instrument-gateway/internal/alerts"
	"github.com/connectedlabs/lab-instrument-gateway/internal/command"
	"github.com/connectedlabs/lab-instrument-gateway/internal/instrument"
	"github.com/connectedlabs/lab-instrument-gateway/internal/logstore"
	"github.com/connectedlabs/lab-instrument-gateway/internal/mock"
	"github.com/connectedlabs/lab-instrument-gateway/internal/scan"
	"github.com/connectedlabs/lab-instrument-gateway/internal/ws"
)

const serviceName = "lab-instrument-gateway"

type Deps struct {
	Client  *instrument.Client
	Queue   *command.Queue
	Alerts  *alerts.Store
	Logs    logstore.Store
	Gen     *mock.Generator
	Scanner *scan.Scanner
	Hub     *ws.Hub

	// ScanHosts is the candidate list the /api/scan fan-out probes.
	ScanHosts []string

	// ProxyClient serves the generic header-driven proxy; defaults to a
	// 10-second-timeout client.
	ProxyClient *http.Client

	Log zerolog.Logger
}

type Server struct {
	app *fiber.App
	Deps
}

func New(deps Deps) *Server {
	if deps.ProxyClient == nil {
		deps.ProxyClient = &http.Client{Timeout: instrument.DefaultTimeout}
	}

	s := &Server{
		app:  fiber.New(fiber.Config{DisableStartupMessage: true}),
		Deps: deps,
	}
	s.Log = deps.Log.With().Str("component", "gateway").Logger()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(cors.New())

	// The generic proxy runs before everything else: any request carrying
	// x-target-url bypasses the structured routes entirely. This preserves
	// bit-compatibility with the pre-existing ad hoc proxy contract.
	s.app.Use(s.genericProxy)

	s.app.Get("/health", s.handleHealth)

	proxy := s.app.Group("/api/proxy")
	proxy.Get("/setspeed/:instrumentId/:value", s.handleSetSpeed)
	proxy.Get("/setruntime/:instrumentId/:value", s.handleSetRuntime)
	proxy.Get("/settemperature/:instrumentId/:value", s.handleSetTemperature)
	proxy.Get("/startoperation/:instrumentId", s.handleStartOperation)
	proxy.Get("/stopoperation/:instrumentId", s.handleStopOperation)

	vicell := s.app.Group("/api/vi-cell")
	vicell.Get("/system-info/:instrumentId", s.viCellGet("system-info"))
	vicell.Get("/status/:instrumentId", s.viCellGet("status"))
	vicell.Get("/results/recent/:instrumentId", s.handleViCellRecentResults)
	vicell.Get("/queue/:instrumentId", s.viCellGet("queue"))
	vicell.Get("/sample/:instrumentId/:sampleId/status", s.viCellSample("status"))
	vicell.Get("/sample/:instrumentId/:sampleId/results", s.viCellSample("results"))
	vicell.Post("/sample/:instrumentId/analyze", s.handleViCellAnalyze)

	control := s.app.Group("/api/control")
	control.Post("/instruments/:id/command", s.handleSubmitCommand)
	control.Get("/commands/:commandId", s.handleGetCommand)
	control.Get("/instruments/:id/commands", s.handleListCommands)

	s.app.Post("/api/alerts", s.handleIngestAlert)
	s.app.Get("/api/alerts", s.handleQueryAlerts)
	s.app.Get("/api/alerts/stats", s.handleAlertStats)
	s.app.Delete("/api/alerts", s.handlePurgeAlerts)

	s.app.Post("/api/logs/collect", s.handleCollectLogs)
	s.app.Get("/api/logs", s.handleQueryLogs)
	s.app.Post("/api/logs/seed-mock-data", s.handleSeedMockData)
	s.app.Post("/api/logs/generate-anomaly-scenario", s.handleAnomalyScenario)

	s.app.Post("/api/anomaly/detect", s.handleDetectAnomalies)
	s.app.Post("/api/diagnosis/analyze", s.handleDiagnosis)

	s.app.Get("/api/scan", s.handleScan)

	if s.Hub != nil {
		s.app.Use("/ws", ws.UpgradeGuard)
		s.app.Get("/ws", s.Hub.Handler())
	}
}

// App exposes the fiber application for tests (app.Test).
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": now(),
		"service":   serviceName,
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
