package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSandbox struct {
	exec    *Execution
	err     error
	timeout time.Duration
}

func (s *stubSandbox) Run(_ context.Context, _ string, timeout time.Duration) (*Execution, error) {
	s.timeout = timeout
	return s.exec, s.err
}

func TestExecuteMissingCredential(t *testing.T) {
	c := &CodeExecutor{MissingCredential: "E2B_API_KEY"}
	assert.Equal(t, "Error: E2B_API_KEY environment variable not set", c.Execute(context.Background(), ExecuteArgs{Code: "1"}))
}

func TestExecuteFormatsSections(t *testing.T) {
	sb := &stubSandbox{exec: &Execution{
		Stdout:  []string{"hello\n", "world"},
		Stderr:  []string{"warning"},
		Error:   "ZeroDivisionError: division by zero",
		Results: []ExecutionResult{{PNG: "iVBOR"}, {Text: "42"}, {}},
	}}
	c := &CodeExecutor{Sandbox: sb}

	out := c.Execute(context.Background(), ExecuteArgs{Code: "print('hello')", Timeout: 5})

	assert.Equal(t, 5*time.Second, sb.timeout)
	assert.Equal(t, strings.Join([]string{
		"**Output:**\n```\nhello\nworld\n```",
		"**Errors:**\n```\nwarning\n```",
		"**Execution Error:**\nZeroDivisionError: division by zero",
		"**Chart 1:** [Image generated]",
		"**Result 2:**\n42",
	}, "\n\n"), out)
}

func TestExecuteNoOutput(t *testing.T) {
	sb := &stubSandbox{exec: &Execution{}}
	c := &CodeExecutor{Sandbox: sb, DefaultTimeout: 30 * time.Second}
	assert.Equal(t, "Code executed successfully with no output.", c.Execute(context.Background(), ExecuteArgs{Code: "x = 1"}))
	assert.Equal(t, 30*time.Second, sb.timeout)
}

func TestExecuteSandboxFailure(t *testing.T) {
	c := &CodeExecutor{Sandbox: &stubSandbox{err: errors.New("quota exceeded")}}
	assert.Equal(t, "Error executing code: quota exceeded", c.Execute(context.Background(), ExecuteArgs{Code: "1"}))
}

func TestE2BSandboxRun(t *testing.T) {
	var killed atomic.Bool
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandboxes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "e2b-key", r.Header.Get("X-API-KEY"))
		_, _ = w.Write([]byte(`{"sandboxID":"sbx1","envdAccessToken":"tok"}`))
	})
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Access-Token"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		codeCh <- body["code"]
		_, _ = w.Write([]byte(strings.Join([]string{
			`{"type":"stdout","text":"4\n"}`,
			`{"type":"result","text":"4","is_main_result":true}`,
			`{"type":"end_of_execution"}`,
		}, "\n")))
	})
	mux.HandleFunc("DELETE /sandboxes/sbx1", func(w http.ResponseWriter, r *http.Request) {
		killed.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sb := &E2BSandbox{
		APIKey:  "e2b-key",
		APIURL:  srv.URL,
		ExecURL: func(string) string { return srv.URL + "/execute" },
	}
	exec, err := sb.Run(context.Background(), "print(2+2)\n2+2", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "print(2+2)\n2+2", <-codeCh)
	assert.Equal(t, []string{"4\n"}, exec.Stdout)
	require.Len(t, exec.Results, 1)
	assert.Equal(t, "4", exec.Results[0].Text)
	assert.True(t, killed.Load())
}

func TestE2BSandboxCreateFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := (&E2BSandbox{APIKey: "bad", APIURL: srv.URL}).Run(context.Background(), "1", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestReadExecutionError(t *testing.T) {
	exec, err := readExecution(strings.NewReader(`{"type":"error","name":"NameError","value":"name 'x' is not defined","traceback":"Traceback..."}` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "NameError: name 'x' is not defined\nTraceback...", exec.Error)
}

func TestDockerSandboxRun(t *testing.T) {
	var removed atomic.Bool
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/containers/create"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Id":"cid","Warnings":[]}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/containers/cid/start"):
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/containers/cid/wait"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"StatusCode":1}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/containers/cid/logs"):
			_, _ = stdcopy.NewStdWriter(w, stdcopy.Stdout).Write([]byte("partial\n"))
			_, _ = stdcopy.NewStdWriter(w, stdcopy.Stderr).Write([]byte("Traceback\n"))
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/containers/cid"):
			removed.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(handler))
	defer srv.Close()
	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cli, err := client.NewClientWithOpts(client.WithHost("tcp://"+parsed.Host), client.WithVersion("1.46"))
	require.NoError(t, err)
	defer cli.Close()

	exec, err := NewDockerSandboxWithClient(cli, "").Run(context.Background(), "raise SystemExit(1)", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{"partial\n"}, exec.Stdout)
	assert.Equal(t, []string{"Traceback\n"}, exec.Stderr)
	assert.Equal(t, "process exited with status 1", exec.Error)
	assert.True(t, removed.Load())
}
