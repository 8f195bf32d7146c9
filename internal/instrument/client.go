// Package instrument talks to lab instruments over their HTTP APIs: the
// legacy free-form XML family and the versioned Vi-CELL JSON REST family.
// Both live on port 8080 of the instrument.
package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every instrument-facing call.
	DefaultTimeout = 10 * time.Second

	// PreviewBytes caps the pass-through body preview on proxy envelopes.
	PreviewBytes = 500
)

// modelAliases rewrites internal code names to the public product name
// before display. A single entry today; extend here if a second case ever
// appears.
var modelAliases = map[string]string{
	"Ampersand": "Vi-CELL BLU",
}

// ExtractIP recovers the instrument IP from a composite instrument id.
// Ids are either a bare IP or "<ip>-<discoveryTimestamp>"; everything after
// the first dash is discarded.
func ExtractIP(instrumentID string) string {
	if i := strings.Index(instrumentID, "-"); i >= 0 {
		return instrumentID[:i]
	}
	return instrumentID
}

// ValidIPv4 reports whether s is a dotted-quad IPv4 address. It must pass
// before any outbound call is made.
func ValidIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// DisplayModel applies the model alias table.
func DisplayModel(raw string) string {
	if alias, ok := modelAliases[raw]; ok {
		return alias
	}
	return raw
}

// Response is the outcome of an instrument call that produced an HTTP
// response. Statuses below 500 are responses, not errors; the caller decides
// what to do with a 4xx.
type Response struct {
	StatusCode int
	Body       []byte
}

// Preview returns at most PreviewBytes of the body for envelope pass-through.
func (r *Response) Preview() string {
	if len(r.Body) > PreviewBytes {
		return string(r.Body[:PreviewBytes])
	}
	return string(r.Body)
}

// OK reports whether the instrument answered 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Client struct {
	httpc *http.Client
	port  int
}

func New(port int) *Client {
	return &Client{
		httpc: &http.Client{Timeout: DefaultTimeout},
		port:  port,
	}
}

// NewWithHTTPClient is for tests that point the adapter at an httptest server.
func NewWithHTTPClient(httpc *http.Client, port int) *Client {
	return &Client{httpc: httpc, port: port}
}

func (c *Client) base(ip string) string {
	return fmt.Sprintf("http://%s:%d", ip, c.port)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instrument request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading instrument response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("instrument returned %d", resp.StatusCode)
	}
	return &Response{StatusCode: resp.StatusCode, Body: b}, nil
}

// Legacy XML API family.

func (c *Client) SetSpeed(ctx context.Context, ip string, rpm float64) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/setspeed?value=%g", c.base(ip), rpm), nil, "")
}

func (c *Client) SetRuntime(ctx context.Context, ip string, cycles float64) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/setruntime?value=%g", c.base(ip), cycles), nil, "")
}

func (c *Client) SetTemperature(ctx context.Context, ip string, celsius float64) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/settemperature?value=%g", c.base(ip), celsius), nil, "")
}

func (c *Client) SetPressure(ctx context.Context, ip string, bar float64) (*Response, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/setpressure?value=%g", c.base(ip), bar), nil, "")
}

func (c *Client) StartOperation(ctx context.Context, ip string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.base(ip)+"/startoperation", nil, "")
}

func (c *Client) StopOperation(ctx context.Context, ip string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.base(ip)+"/stopoperation", nil, "")
}

// SystemModel probes the legacy system-info document and pulls the one
// meaningful field out of it. An empty model or an unparseable document is
// indistinguishable from "not an instrument" to the scanner.
func (c *Client) SystemModel(ctx context.Context, ip string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.base(ip)+"/systeminfo", nil, "")
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("systeminfo returned %d", resp.StatusCode)
	}
	model, err := parseSystemModel(resp.Body)
	if err != nil {
		return "", err
	}
	return model, nil
}

// Vi-CELL JSON REST family.

func (c *Client) ViCellGet(ctx context.Context, ip, resource string, query url.Values) (*Response, error) {
	u := c.base(ip) + "/api/v1/" + resource
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, "")
}

// AnalyzeRequest starts a Vi-CELL sample analysis.
type AnalyzeRequest struct {
	SampleID string  `json:"sampleId"`
	CellType string  `json:"cellType,omitempty"`
	Dilution float64 `json:"dilution,omitempty"`
	WashType string  `json:"washType,omitempty"`
}

func (c *Client) ViCellAnalyze(ctx context.Context, ip string, req AnalyzeRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, c.base(ip)+"/api/v1/sample/analyze", body, "application/json")
}
