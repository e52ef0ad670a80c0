package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/michaelbrown/decipher/internal/config"
	"github.com/michaelbrown/decipher/internal/metrics"
	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/storage/sqlite"
	"github.com/michaelbrown/decipher/internal/trace"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}, MaxConcurrent: 4},
	}

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatal(err)
	}
	sb := sandbox.NewInProcess(sandbox.DefaultPolicy())
	sb.Recorder = rec

	srv := New(cfg, Deps{Sandbox: sb, Store: store, Metrics: reg})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	ts := testServer(t)
	status, body := do(t, ts, http.MethodGet, "/", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("GET / = %d %s", status, body)
	}
}

func TestVisualize(t *testing.T) {
	ts := testServer(t)

	for _, path := range []string{"/python/visualize", "/visualize"} {
		t.Run(path, func(t *testing.T) {
			status, body := do(t, ts, http.MethodPost, path, map[string]any{
				"code":   "n = int(input())\nprint(n * 2)\n",
				"inputs": []string{"21"},
			})
			if status != http.StatusOK {
				t.Fatalf("status = %d: %s", status, body)
			}
			var got struct {
				Steps       []trace.Step      `json:"steps"`
				Error       *string           `json:"error"`
				FinalOutput string            `json:"final_output"`
				VariableMap map[string]string `json:"variable_map"`
			}
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if got.Error != nil {
				t.Errorf("error = %q", *got.Error)
			}
			// Consumed input is echoed into the output, as a terminal would.
			if got.FinalOutput != "21\n42\n" {
				t.Errorf("final_output = %q, want %q", got.FinalOutput, "21\n42\n")
			}
			if len(got.Steps) == 0 || got.Steps[len(got.Steps)-1].Event != trace.EventFinished {
				t.Errorf("steps = %+v, want a finished step last", got.Steps)
			}
			if got.VariableMap == nil {
				t.Error("variable_map should be an empty object without an explainer")
			}
		})
	}
}

func TestVisualizeRejected(t *testing.T) {
	ts := testServer(t)
	status, _ := do(t, ts, http.MethodPost, "/python/visualize", map[string]any{
		"code": strings.Repeat("x", 65<<10),
	})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}

	status, _ = do(t, ts, http.MethodPost, "/python/visualize", "not an object")
	if status != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", status)
	}
}

func TestVisualizeProgramError(t *testing.T) {
	ts := testServer(t)
	status, body := do(t, ts, http.MethodPost, "/debug/trace", map[string]any{"code": "x = 1\ny = x / 0\n"})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, body)
	}
	var got struct {
		Trace trace.Trace `json:"trace"`
		State string      `json:"state"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.State != "errored" {
		t.Errorf("state = %q, want errored", got.State)
	}
	if got.Trace.Error == nil || !strings.HasPrefix(*got.Trace.Error, "Execution Error near line 2: ZeroDivisionError") {
		t.Errorf("error = %v", got.Trace.Error)
	}
}

func TestExplainWithoutEndpoint(t *testing.T) {
	ts := testServer(t)

	status, body := do(t, ts, http.MethodPost, "/python/explain", map[string]any{"code_line": "x = 1"})
	if status != http.StatusOK || !strings.Contains(string(body), "explanation") {
		t.Errorf("explain = %d %s", status, body)
	}
	status, _ = do(t, ts, http.MethodPost, "/python/explain", map[string]any{})
	if status != http.StatusBadRequest {
		t.Errorf("empty explain status = %d, want 400", status)
	}

	status, body = do(t, ts, http.MethodPost, "/summarize", map[string]any{"code": "x = 1", "trace": []any{}})
	if status != http.StatusOK || !strings.Contains(string(body), "Execution trace is empty") {
		t.Errorf("summarize = %d %s", status, body)
	}
}

func TestAlgorithms(t *testing.T) {
	ts := testServer(t)

	status, body := do(t, ts, http.MethodPost, "/python/bfs", map[string]any{
		"graph": map[string][]int{"0": {1, 2}, "1": {2}, "2": {}},
		"start": 0,
	})
	if status != http.StatusOK || !strings.Contains(string(body), `"final_order":[0,1,2]`) {
		t.Errorf("bfs = %d %s", status, body)
	}

	status, body = do(t, ts, http.MethodPost, "/python/dfs", map[string]any{
		"graph": map[string][]int{"x": {1}},
		"start": 0,
	})
	if status != http.StatusBadRequest {
		t.Errorf("dfs with bad graph = %d %s", status, body)
	}

	status, body = do(t, ts, http.MethodPost, "/python/wavearray", map[string]any{"numbers": []int{1, 2, 3, 4}})
	if status != http.StatusOK || !strings.Contains(string(body), `"final_array":[2,1,4,3]`) {
		t.Errorf("wavearray = %d %s", status, body)
	}
}

func TestHistory(t *testing.T) {
	ts := testServer(t)

	status, _ := do(t, ts, http.MethodPost, "/api/history/save", map[string]any{"userId": "u1"})
	if status != http.StatusBadRequest {
		t.Errorf("save without code = %d, want 400", status)
	}

	status, body := do(t, ts, http.MethodPost, "/api/history/save", map[string]any{
		"userId": "u1", "code": "print(1)", "language": "python", "timestamp": "2020-01-01T00:00:00Z",
	})
	if status != http.StatusCreated {
		t.Fatalf("save = %d %s", status, body)
	}

	// A traced run with a user ID lands in history too.
	status, _ = do(t, ts, http.MethodPost, "/python/visualize", map[string]any{"code": "y = 2\n", "user_id": "u1"})
	if status != http.StatusOK {
		t.Fatalf("visualize = %d", status)
	}

	status, body = do(t, ts, http.MethodGet, "/api/codeHistory/u1", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d %s", status, body)
	}
	var list struct {
		Success bool `json:"success"`
		Data    []struct {
			ID      string `json:"id"`
			Code    string `json:"code"`
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if !list.Success || len(list.Data) != 2 {
		t.Fatalf("list = %+v", list)
	}
	run := list.Data[0]
	if run.Code != "y = 2\n" || run.Outcome != "completed" {
		t.Errorf("newest entry = %+v, want the traced run", run)
	}

	status, body = do(t, ts, http.MethodGet, "/api/history/entry/"+run.ID[:8]+"?format=markdown", nil)
	if status != http.StatusOK || !strings.Contains(string(body), "- **Outcome:** completed") {
		t.Errorf("markdown export = %d %s", status, body)
	}

	status, _ = do(t, ts, http.MethodGet, "/api/history/entry/nope", nil)
	if status != http.StatusNotFound {
		t.Errorf("missing entry = %d, want 404", status)
	}

	status, body = do(t, ts, http.MethodDelete, "/api/history/u1", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `"deleted":2`) {
		t.Errorf("clear = %d %s", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testServer(t)
	do(t, ts, http.MethodPost, "/python/visualize", map[string]any{"code": "x = 1\n"})

	status, body := do(t, ts, http.MethodGet, "/metrics", nil)
	if status != http.StatusOK || !strings.Contains(string(body), `decipher_runs_total{state="completed"} 1`) {
		t.Errorf("metrics = %d %s", status, body)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		preflight   bool
		wantOrigin  string
		credentials string
	}{
		{"listed origin preflight", []string{"http://localhost:5173"}, "http://localhost:5173", true, "http://localhost:5173", "true"},
		{"listed origin request", []string{"http://localhost:5173"}, "http://localhost:5173", false, "http://localhost:5173", "true"},
		{"unknown origin", []string{"http://localhost:5173"}, "http://evil.example", false, "", ""},
		{"wildcard has no credentials", []string{"*"}, "http://evil.example", false, "*", ""},
		{"wildcard preflight", []string{"*"}, "http://evil.example", true, "*", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Server: config.ServerConfig{AllowedOrigins: tt.allowed, MaxConcurrent: 1}}
			srv := New(cfg, Deps{Sandbox: sandbox.NewInProcess(sandbox.DefaultPolicy())})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.preflight {
				req = httptest.NewRequest(http.MethodOptions, "/python/visualize", nil)
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code/100 != 2 {
				t.Errorf("status = %d, want 2xx", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.credentials {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.credentials)
			}
		})
	}
}

func TestVisualizeStream(t *testing.T) {
	ts := testServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/python/visualize/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatal(err)
	}
	var msg wsOutgoing
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" {
		t.Fatalf("bogus message reply = %+v, %v", msg, err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "run", "code": "a = 1\nb = a + 1\nprint(b)\n"}); err != nil {
		t.Fatal(err)
	}
	var steps int
	for {
		var msg wsOutgoing
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "step" {
			if msg.Step == nil || msg.Step.Seq != steps {
				t.Fatalf("step %d = %+v", steps, msg.Step)
			}
			steps++
			continue
		}
		if msg.Type != "done" {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.State != "completed" || msg.Trace == nil || len(msg.Trace.Steps) != steps {
			t.Errorf("done = state %q, %d streamed steps, trace %+v", msg.State, steps, msg.Trace)
		}
		if msg.Trace.FinalOutput != "2\n" {
			t.Errorf("final_output = %q", msg.Trace.FinalOutput)
		}
		return
	}
}
