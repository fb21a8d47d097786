package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fsscompiler/internal/failure"
	"fsscompiler/internal/job"
)

type fakeCompiler struct {
	result *job.Result
	got    []byte
}

func (f *fakeCompiler) Compile(ctx context.Context, doc []byte) *job.Result {
	f.got = doc
	return f.result
}

func newTestServer(t *testing.T, svc Compiler) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	h, err := NewHandler(zaptest.NewLogger(t), svc, reg, reg)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/compile", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandler_Status(t *testing.T) {
	srv := newTestServer(t, &fakeCompiler{})

	resp, err := http.Get(srv.URL + "/api/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(b))
}

func TestHandler_CompileSuccess(t *testing.T) {
	fc := &fakeCompiler{result: &job.Result{JobID: "j1", Kind: job.Succeeded, Payload: "13\n"}}
	srv := newTestServer(t, fc)

	doc := `{"functions":[]}`
	resp, out := post(t, srv, doc)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Succeeded", out["kind"])
	assert.Equal(t, "13\n", out["payload"])
	assert.Equal(t, doc, string(fc.got))
}

func TestHandler_CompileStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"parse", &failure.ParseError{Code: failure.CodeMalformedDocument, Message: "bad"}, http.StatusBadRequest},
		{"compile", &failure.CompileError{Code: failure.CodeNonZeroExit, Diagnostic: "boom"}, http.StatusUnprocessableEntity},
		{"runtime", &failure.RuntimeError{Code: failure.CodeTimeout}, http.StatusUnprocessableEntity},
		{"admission", &job.AdmissionError{Cause: context.DeadlineExceeded}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := failure.Classify(tt.err)
			require.NoError(t, err)
			fc := &fakeCompiler{result: &job.Result{Kind: job.Failed, Err: tt.err, Failure: &rec, Payload: rec.Text()}}
			srv := newTestServer(t, fc)

			resp, out := post(t, srv, `{}`)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "Failed", out["kind"])
			assert.NotNil(t, out["failure"])
		})
	}
}

func TestHandler_MetricsEndpoint(t *testing.T) {
	fc := &fakeCompiler{result: &job.Result{Kind: job.Succeeded}}
	srv := newTestServer(t, fc)

	_, _ = post(t, srv, `{}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(b), `fsscompiler_http_requests_total{method="POST",path="/api/compile",response_code="200"} 1`)
}

func TestHandler_RejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t, &fakeCompiler{result: &job.Result{Kind: job.Succeeded}})

	body := bytes.Repeat([]byte("x"), maxDocumentBytes+1)
	resp, err := http.Post(srv.URL+"/api/compile", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h, err := NewHandler(zaptest.NewLogger(t), &fakeCompiler{}, reg, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, zaptest.NewLogger(t), ln, h) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
