package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// InstrumentAPI is the fake device the simulator binary exposes on the
// instrument port: the legacy XML family plus the Vi-CELL JSON family.
type InstrumentAPI struct {
	model string

	mu          sync.Mutex
	speed       float64
	runtime     float64
	temperature float64
	pressure    float64
	running     bool
	samples     map[string]string // sampleId -> status
}

func NewInstrumentAPI(model string) *InstrumentAPI {
	return &InstrumentAPI{
		model:       model,
		temperature: 22.0,
		pressure:    1.0,
		samples:     make(map[string]string),
	}
}

// App builds the fiber application serving both API families.
func (s *InstrumentAPI) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Legacy XML family.
	app.Get("/systeminfo", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "application/xml")
		return c.SendString(fmt.Sprintf(
			"<system><systemmodel>%s</systemmodel><serial>SIM-0001</serial></system>", s.model))
	})
	app.Get("/setspeed", s.legacySet(func(v float64) { s.speed = v }))
	app.Get("/setruntime", s.legacySet(func(v float64) { s.runtime = v }))
	app.Get("/settemperature", s.legacySet(func(v float64) { s.temperature = v }))
	app.Get("/setpressure", s.legacySet(func(v float64) { s.pressure = v }))
	app.Get("/startoperation", func(c *fiber.Ctx) error {
		s.mu.Lock()
		s.running = true
		s.mu.Unlock()
		c.Set("Content-Type", "application/xml")
		return c.SendString("<result><status>started</status></result>")
	})
	app.Get("/stopoperation", func(c *fiber.Ctx) error {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		c.Set("Content-Type", "application/xml")
		return c.SendString("<result><status>stopped</status></result>")
	})

	// Vi-CELL JSON family.
	v1 := app.Group("/api/v1")
	v1.Get("/system-info", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"model":           s.model,
			"serial":          "SIM-0001",
			"firmwareVersion": "4.2.1",
		})
	})
	v1.Get("/status", func(c *fiber.Ctx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		state := "idle"
		if s.running {
			state = "running"
		}
		return c.JSON(fiber.Map{
			"state":       state,
			"temperature": s.temperature,
			"speed":       s.speed,
			"pressure":    s.pressure,
		})
	})
	v1.Get("/results/recent", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 10)
		results := make([]fiber.Map, 0, limit)
		for i := 0; i < limit; i++ {
			results = append(results, fiber.Map{
				"sampleId":      fmt.Sprintf("S-%03d", i+1),
				"viability":     95.0 - float64(i),
				"concentration": 1.2e6,
			})
		}
		return c.JSON(fiber.Map{"results": results})
	})
	v1.Get("/queue", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"queued": []string{}, "depth": 0})
	})
	v1.Get("/sample/:sampleId/status", func(c *fiber.Ctx) error {
		s.mu.Lock()
		status, ok := s.samples[c.Params("sampleId")]
		s.mu.Unlock()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown sample"})
		}
		return c.JSON(fiber.Map{"sampleId": c.Params("sampleId"), "status": status})
	})
	v1.Get("/sample/:sampleId/results", func(c *fiber.Ctx) error {
		s.mu.Lock()
		_, ok := s.samples[c.Params("sampleId")]
		s.mu.Unlock()
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown sample"})
		}
		return c.JSON(fiber.Map{
			"sampleId":      c.Params("sampleId"),
			"viability":     94.7,
			"concentration": 1.1e6,
			"completedAt":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	v1.Post("/sample/analyze", func(c *fiber.Ctx) error {
		var req struct {
			SampleID string `json:"sampleId"`
		}
		if err := c.BodyParser(&req); err != nil || req.SampleID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sampleId is required"})
		}
		s.mu.Lock()
		s.samples[req.SampleID] = "queued"
		s.mu.Unlock()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"sampleId":  req.SampleID,
			"status":    "queued",
			"requestId": uuid.NewString(),
		})
	})

	return app
}

func (s *InstrumentAPI) legacySet(apply func(float64)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := c.QueryFloat("value")
		s.mu.Lock()
		apply(v)
		s.mu.Unlock()
		c.Set("Content-Type", "application/xml")
		return c.SendString("<result><status>ok</status></result>")
	}
}
