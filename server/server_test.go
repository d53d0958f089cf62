package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/erpgate/auth"
	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/dispatch"
	"github.com/jonwraymond/erpgate/encode"
	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/registry"
	"github.com/jonwraymond/erpgate/toolerr"
)

// stubDispatcher answers from fixed results and errors by tool name.
type stubDispatcher struct {
	results map[string]*dispatch.Result
	errs    map[string]error
	gotArgs map[string]any
	gotID   string
}

func (s *stubDispatcher) Dispatch(ctx context.Context, tool string, args map[string]any) (*dispatch.Result, error) {
	s.gotArgs = args
	s.gotID = observe.CorrelationID(ctx)
	if err, ok := s.errs[tool]; ok {
		return nil, err
	}
	if res, ok := s.results[tool]; ok {
		return res, nil
	}
	return nil, toolerr.Internal()
}

func newServer(t *testing.T, d Dispatcher) *Server {
	t.Helper()
	s, err := New(registry.Default(), d, WithVersion("test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func rpc(t *testing.T, s *Server, body string) gjson.Result {
	t.Helper()
	resp := s.MCP().HandleMessage(context.Background(), json.RawMessage(body))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return gjson.ParseBytes(data)
}

func TestToolsList(t *testing.T) {
	s := newServer(t, &stubDispatcher{})
	res := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)

	tools := res.Get("result.tools").Array()
	if len(tools) != registry.Default().Len() {
		t.Fatalf("tools = %d, want %d", len(tools), registry.Default().Len())
	}
	byName := map[string]gjson.Result{}
	for _, tool := range tools {
		byName[tool.Get("name").String()] = tool
	}

	inv, ok := byName["get_customer_invoices"]
	if !ok {
		t.Fatal("get_customer_invoices not listed")
	}
	if inv.Get("inputSchema.type").String() != "object" {
		t.Errorf("inputSchema = %s", inv.Get("inputSchema").Raw)
	}
	if !inv.Get("inputSchema.properties.format").Exists() {
		t.Error("format argument missing from schema")
	}
	if !inv.Get("annotations.readOnlyHint").Bool() {
		t.Error("read tool not annotated read-only")
	}
	if del := byName["delete_invoice"]; !del.Get("annotations.destructiveHint").Bool() {
		t.Errorf("delete_invoice annotations = %s", del.Get("annotations").Raw)
	}
}

func TestToolsCall(t *testing.T) {
	d := &stubDispatcher{
		results: map[string]*dispatch.Result{
			"get_invoices": {Tool: "get_invoices", Response: encode.Response{
				Format: encode.FormatTabular, Payload: "[1]{id}:\n7", Rows: 1, Truncated: true,
			}},
			"get_status": {Tool: "get_status", Response: encode.Response{Format: encode.FormatJSON, Payload: `{"ok":1}`, Rows: 1}},
		},
		errs: map[string]error{
			"get_invoice_by_id": toolerr.NotFound("invoices", "9"),
		},
	}
	s := newServer(t, d)

	t.Run("success", func(t *testing.T) {
		res := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_status","arguments":{"format":"json"}}}`)
		if res.Get("result.isError").Bool() {
			t.Fatalf("isError set: %s", res.Raw)
		}
		if got := res.Get("result.content.0.text").String(); got != `{"ok":1}` {
			t.Errorf("text = %q", got)
		}
		if d.gotArgs["format"] != "json" {
			t.Errorf("args = %v", d.gotArgs)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		res := rpc(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_invoices","arguments":{"limit":1}}}`)
		content := res.Get("result.content").Array()
		if len(content) != 2 || !strings.HasPrefix(content[1].Get("text").String(), "truncated: 1 rows") {
			t.Errorf("content = %s", res.Get("result.content").Raw)
		}
	})

	t.Run("error", func(t *testing.T) {
		res := rpc(t, s, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get_invoice_by_id","arguments":{"id":9}}}`)
		if !res.Get("result.isError").Bool() {
			t.Fatalf("isError not set: %s", res.Raw)
		}
		body := gjson.Parse(res.Get("result.content.0.text").String())
		if body.Get("kind").String() != "not_found" || body.Get("details.entity").String() != "invoices" {
			t.Errorf("error body = %s", body.Raw)
		}
		if body.Get("retriable").Bool() {
			t.Error("not_found marked retriable")
		}
	})
}

func TestHandler(t *testing.T) {
	d := &stubDispatcher{}
	s := newServer(t, d)
	m := cache.NewManager(cache.NewMemoryStore(), cache.DefaultPolicy())
	defer m.Close()

	h := s.Handler(HTTPOptions{
		Guard:       auth.NewGuard(auth.NewAPIKeyAuthenticator([]string{"k1"})),
		Cache:       m,
		Lockout:     auth.NewLockout(20, time.Hour),
		Metrics:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		AllowOrigin: "*",
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := get("/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d", rec.Code)
	}
	if rec := get("/metrics"); rec.Body.String() != "# metrics" {
		t.Errorf("/metrics = %q", rec.Body.String())
	}

	rec := get("/stats")
	var st Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode /stats: %v", err)
	}
	if st.Tools != registry.Default().Len() || !st.Cache.Enabled || st.Version != "test" {
		t.Errorf("/stats = %+v", st)
	}

	req := httptest.NewRequest(http.MethodPost, EndpointPath, strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /mcp = %d, want 401", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	req = httptest.NewRequest(http.MethodOptions, EndpointPath, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
}

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"req-42", "req-42"},
		{"", ""},
		{"bad id with spaces", ""},
		{strings.Repeat("a", 129), ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, EndpointPath, nil)
		if tt.header != "" {
			r.Header.Set(RequestIDHeader, tt.header)
		}
		ctx := withRequestID(context.Background(), r)
		if got := observe.CorrelationID(ctx); got != tt.want {
			t.Errorf("withRequestID(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
