package server

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/connectedlabs/lab-instrument-gateway/internal/instrument"
)

// forwardedHeaders is the whitelist the generic proxy passes upstream. The
// operator-identity header must survive the hop; everything else is
// dropped.
var forwardedHeaders = []string{"Content-Type", "Accept", "Authorization", "X-Op-Id"}

// genericProxy forwards any request carrying x-target-url to the named
// upstream, rewriting Origin on the way out and injecting permissive CORS
// headers on the way back. No retry; a connection failure is a plain 500.
func (s *Server) genericProxy(c *fiber.Ctx) error {
	target := c.Get("x-target-url")
	if target == "" {
		return c.Next()
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid x-target-url",
			"message": "x-target-url must be an absolute URL",
		})
	}

	dest := u.Scheme + "://" + u.Host + c.OriginalURL()

	var body io.Reader
	if len(c.Body()) > 0 {
		body = bytes.NewReader(c.Body())
	}
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), dest, body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad proxy request",
			"message": err.Error(),
		})
	}
	for _, h := range forwardedHeaders {
		if v := c.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	req.Header.Set("Origin", u.Scheme+"://"+u.Host)

	resp, err := s.ProxyClient.Do(req)
	if err != nil {
		s.Log.Warn().Err(err).Str("target", target).Msg("generic proxy upstream failure")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "proxy request failed",
			"message": err.Error(),
		})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "proxy request failed",
			"message": err.Error(),
		})
	}

	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "*")
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set("Content-Type", ct)
	}
	return c.Status(resp.StatusCode).Send(respBody)
}

// resolveIP extracts and validates the instrument IP, writing the 400
// envelope itself on failure. The validation happens before any outbound
// request is attempted.
func (s *Server) resolveIP(c *fiber.Ctx) (string, bool) {
	instrumentID := c.Params("instrumentId")
	ip := instrument.ExtractIP(instrumentID)
	if !instrument.ValidIPv4(ip) {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":      false,
			"error":        "Invalid instrument IP address",
			"instrumentId": instrumentID,
			"timestamp":    now(),
		})
		return "", false
	}
	return ip, true
}

// numericParam parses and range-checks the :value segment.
func (s *Server) numericParam(c *fiber.Ctx, name string, min, max float64) (float64, bool) {
	raw := c.Params("value")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < min || v > max {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"error":     name + " must be a number between " + formatRange(min, max),
			"value":     raw,
			"timestamp": now(),
		})
		return 0, false
	}
	return v, true
}

func formatRange(min, max float64) string {
	return strconv.FormatFloat(min, 'f', -1, 64) + " and " + strconv.FormatFloat(max, 'f', -1, 64)
}

// envelope wraps an instrument response in the uniform structured-proxy
// shape. Upstream 4xx still travels back as HTTP 200 with success:false;
// existing clients depend on 200 meaning "the request reached the gateway".
func (s *Server) envelope(c *fiber.Ctx, ip, message string, resp *instrument.Response, extra fiber.Map) error {
	payload := fiber.Map{
		"success":         resp.OK(),
		"instrumentIp":    ip,
		"statusCode":      resp.StatusCode,
		"message":         message,
		"responsePreview": resp.Preview(),
		"timestamp":       now(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	return c.JSON(payload)
}

// upstreamFailure is the no-response-at-all case: nothing to describe, so a
// plain 500.
func (s *Server) upstreamFailure(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success":   false,
		"error":     "instrument unreachable",
		"message":   err.Error(),
		"timestamp": now(),
	})
}

func (s *Server) handleSetSpeed(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	v, ok := s.numericParam(c, "Speed", 500, 100000)
	if !ok {
		return nil
	}
	resp, err := s.Client.SetSpeed(c.UserContext(), ip, v)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Speed set request completed", resp, fiber.Map{"speed": v})
}

func (s *Server) handleSetRuntime(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	v, ok := s.numericParam(c, "Runtime", 1, 1000)
	if !ok {
		return nil
	}
	resp, err := s.Client.SetRuntime(c.UserContext(), ip, v)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Runtime set request completed", resp, fiber.Map{"runtime": v})
}

func (s *Server) handleSetTemperature(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	v, ok := s.numericParam(c, "Temperature", -80, 300)
	if !ok {
		return nil
	}
	resp, err := s.Client.SetTemperature(c.UserContext(), ip, v)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Temperature set request completed", resp, fiber.Map{"temperature": v})
}

func (s *Server) handleStartOperation(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	resp, err := s.Client.StartOperation(c.UserContext(), ip)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Start operation request completed", resp, fiber.Map{"operation": "start"})
}

func (s *Server) handleStopOperation(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	resp, err := s.Client.StopOperation(c.UserContext(), ip)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Stop operation request completed", resp, fiber.Map{"operation": "stop"})
}

// viCellGet proxies the simple Vi-CELL sub-resources.
func (s *Server) viCellGet(resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip, ok := s.resolveIP(c)
		if !ok {
			return nil
		}
		resp, err := s.Client.ViCellGet(c.UserContext(), ip, resource, nil)
		if err != nil {
			return s.upstreamFailure(c, err)
		}
		return s.envelope(c, ip, "Vi-CELL "+resource+" request completed", resp, fiber.Map{"resource": resource})
	}
}

func (s *Server) handleViCellRecentResults(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}
	q := url.Values{}
	if limit := c.Query("limit"); limit != "" {
		q.Set("limit", limit)
	}
	resp, err := s.Client.ViCellGet(c.UserContext(), ip, "results/recent", q)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Vi-CELL recent results request completed", resp, fiber.Map{"resource": "results/recent"})
}

func (s *Server) viCellSample(sub string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip, ok := s.resolveIP(c)
		if !ok {
			return nil
		}
		resource := "sample/" + c.Params("sampleId") + "/" + sub
		resp, err := s.Client.ViCellGet(c.UserContext(), ip, resource, nil)
		if err != nil {
			return s.upstreamFailure(c, err)
		}
		return s.envelope(c, ip, "Vi-CELL sample "+sub+" request completed", resp, fiber.Map{
			"resource": resource,
			"sampleId": c.Params("sampleId"),
		})
	}
}

func (s *Server) handleViCellAnalyze(c *fiber.Ctx) error {
	ip, ok := s.resolveIP(c)
	if !ok {
		return nil
	}

	var req instrument.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil || req.SampleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"error":     "sampleId is required",
			"timestamp": now(),
		})
	}

	resp, err := s.Client.ViCellAnalyze(c.UserContext(), ip, req)
	if err != nil {
		return s.upstreamFailure(c, err)
	}
	return s.envelope(c, ip, "Vi-CELL analyze request completed", resp, fiber.Map{"sampleId": req.SampleID})
}
