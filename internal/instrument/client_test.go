package instrument

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIP(t *testing.T) {
	assert.Equal(t, "192.168.1.105", ExtractIP("192.168.1.105-1718000000000"))
	assert.Equal(t, "192.168.1.105", ExtractIP("192.168.1.105"))
	assert.Equal(t, "10.0.0.1", ExtractIP("10.0.0.1-17-extra-dashes"))
	assert.Equal(t, "", ExtractIP("-leading"))
}

func TestValidIPv4(t *testing.T) {
	valid := []string{"192.168.1.1", "10.0.0.255", "127.0.0.1"}
	for _, ip := range valid {
		assert.True(t, ValidIPv4(ip), ip)
	}

	invalid := []string{"", "localhost", "192.168.1", "192.168.1.1.1", "999.1.1.1", "::1", "fe80::1"}
	for _, ip := range invalid {
		assert.False(t, ValidIPv4(ip), ip)
	}
}

func TestDisplayModel(t *testing.T) {
	assert.Equal(t, "Vi-CELL BLU", DisplayModel("Ampersand"))
	assert.Equal(t, "BioRad CFX96", DisplayModel("BioRad CFX96"))
	assert.Equal(t, "", DisplayModel(""))
}

func TestResponsePreview(t *testing.T) {
	short := &Response{StatusCode: 200, Body: []byte("ok")}
	assert.Equal(t, "ok", short.Preview())

	long := &Response{StatusCode: 200, Body: []byte(strings.Repeat("x", PreviewBytes+100))}
	assert.Len(t, long.Preview(), PreviewBytes)
}

func TestResponseOK(t *testing.T) {
	assert.True(t, (&Response{StatusCode: 200}).OK())
	assert.True(t, (&Response{StatusCode: 202}).OK())
	assert.False(t, (&Response{StatusCode: 404}).OK())
	assert.False(t, (&Response{StatusCode: 301}).OK())
}

func TestParseSystemModel(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"lowercase", `<?xml version="1.0"?><root><systemmodel>Avanti J-26S XP</systemmodel></root>`, "Avanti J-26S XP"},
		{"mixed case", `<SystemInfo><SystemModel>Ampersand</SystemModel></SystemInfo>`, "Ampersand"},
		{"underscore", `<info><system_model>CFX96</system_model></info>`, "CFX96"},
		{"whitespace", "<systemmodel>\n  Heracell\n</systemmodel>", "Heracell"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model, err := parseSystemModel([]byte(tc.doc))
			require.NoError(t, err)
			assert.Equal(t, tc.want, model)
		})
	}
}

func TestParseSystemModelMissing(t *testing.T) {
	for _, doc := range []string{
		`<root><other>value</other></root>`,
		`<systemmodel></systemmodel>`,
		`not xml at all`,
		``,
	} {
		_, err := parseSystemModel([]byte(doc))
		assert.Error(t, err, doc)
	}
}

// testClient points the adapter at an httptest server by reusing its port.
func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return NewWithHTTPClient(srv.Client(), port), srv
}

func TestSystemModelProbe(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/systeminfo", r.URL.Path)
		w.Write([]byte(`<systeminfo><systemmodel>Ampersand</systemmodel></systeminfo>`))
	}))

	model, err := c.SystemModel(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Ampersand", model)
}

func TestSetSpeedBuildsQuery(t *testing.T) {
	var gotPath, gotValue string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotValue = r.URL.Query().Get("value")
		w.Write([]byte("<result>OK</result>"))
	}))

	resp, err := c.SetSpeed(context.Background(), "127.0.0.1", 1500)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "/setspeed", gotPath)
	assert.Equal(t, "1500", gotValue)
}

func TestServerErrorIsError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.StartOperation(context.Background(), "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientErrorIsResponse(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown sample"}`))
	}))

	resp, err := c.ViCellGet(context.Background(), "127.0.0.1", "sample/unknown/status", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Preview(), "unknown sample")
}

func TestViCellAnalyzePostsJSON(t *testing.T) {
	var gotPath, gotCT string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"queued"}`))
	}))

	resp, err := c.ViCellAnalyze(context.Background(), "127.0.0.1", AnalyzeRequest{SampleID: "S-42"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/api/v1/sample/analyze", gotPath)
	assert.Equal(t, "application/json", gotCT)
}

func TestViCellGetEncodesQuery(t *testing.T) {
	var gotLimit string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`[]`))
	}))

	q := url.Values{}
	q.Set("limit", "5")
	_, err := c.ViCellGet(context.Background(), "127.0.0.1", "results/recent", q)
	require.NoError(t, err)
	assert.Equal(t, "5", gotLimit)
}
