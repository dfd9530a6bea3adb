package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

func TestStreamParsesSSE(t *testing.T) {
	var gotReq agui.RunAgentInput

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/copilotkit" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"RUN_STARTED\",\"threadId\":\"t1\",\"runId\":\"r1\"}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"type\":\"CUSTOM\",\"name\":\"on_interrupt\",\"value\":{\"approval_id\":\"ap_1\",\"tool_call_id\":\"c1\",\"tool_name\":\"e2b_execute\",\"allowed_decisions\":[\"approve\",\"reject\"]}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"RUN_FINISHED\",\"threadId\":\"t1\",\"runId\":\"r1\"}")
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c := New(server.URL, WithHTTPClient(server.Client()))
	var events []SSEEvent
	err := c.Stream(ctx, &agui.RunAgentInput{ThreadID: "t1", RunID: "r1"}, func(event SSEEvent) error {
		events = append(events, event)
		return nil
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if gotReq.ThreadID != "t1" || gotReq.RunID != "r1" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Type() != "RUN_STARTED" || events[2].Type() != "RUN_FINISHED" {
		t.Fatalf("unexpected event types: %s, %s", events[0].Type(), events[2].Type())
	}
	interrupt, ok := events[1].Interrupt()
	if !ok {
		t.Fatalf("expected interrupt event, got %q", events[1].Data)
	}
	if interrupt.ApprovalID != "ap_1" || interrupt.ToolName != "e2b_execute" {
		t.Fatalf("unexpected interrupt: %+v", interrupt)
	}
	if _, ok := events[0].Interrupt(); ok {
		t.Fatalf("RUN_STARTED must not decode as interrupt")
	}
}

func TestHandlerErrorStopsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"RUN_STARTED\"}\n\ndata: {\"type\":\"RUN_FINISHED\"}\n\n")
	}))
	defer server.Close()

	stop := errors.New("stop")
	calls := 0
	err := New(server.URL).Stream(context.Background(), &agui.RunAgentInput{}, func(SSEEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Invalid authentication credentials"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Session not found"}`)
	}))
	defer server.Close()

	_, err := New(server.URL).ListSessions(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 api error, got %v", err)
	}

	_, err = New(server.URL, WithAPIKey("key-1")).Research(context.Background(), "s1", "q", nil)
	if !errors.As(err, &apiErr) || apiErr.Detail != "Session not found" {
		t.Fatalf("expected 404 detail, got %v", err)
	}
}

func TestCreateSessionSendsAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization %q", got)
		}
		var req domain.CreateSessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		title := ""
		if req.Title != nil {
			title = *req.Title
		}
		fmt.Fprintf(w, `{"id":"s1","title":%q,"status":"active"}`, title)
	}))
	defer server.Close()

	resp, err := New(server.URL, WithToken("tok")).CreateSession(context.Background(), "Go")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if resp.ID != "s1" || resp.Title == nil || *resp.Title != "Go" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHeader(t *testing.T) {
	h := New("http://localhost", WithAPIKey("key-1"), WithToken("tok")).AuthHeader()
	if h.Get("X-Api-Key") != "key-1" || h.Get("Authorization") != "Bearer tok" {
		t.Fatalf("unexpected headers: %v", h)
	}
	if got := New("http://localhost").AuthHeader(); len(got) != 0 {
		t.Fatalf("expected no headers, got %v", got)
	}
}

func TestWatchURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000":    "ws://localhost:8000/ws/sessions/s1",
		"https://api.example.com/": "wss://api.example.com/ws/sessions/s1",
		"http://host/prefix":       "ws://host/prefix/ws/sessions/s1",
	}
	for base, want := range cases {
		got, err := New(base).WatchURL("s1")
		if err != nil {
			t.Fatalf("WatchURL(%s): %v", base, err)
		}
		if got != want {
			t.Fatalf("WatchURL(%s) = %s, want %s", base, got, want)
		}
	}
}
