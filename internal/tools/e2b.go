package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

const (
	e2bAPIURL   = "https://api.e2b.dev"
	e2bTemplate = "code-interpreter-v1"
	e2bJupyter  = 49999
)

// E2BSandbox runs code in an E2B code-interpreter sandbox.
type E2BSandbox struct {
	APIKey string
	APIURL string
	Domain string
	Client *http.Client
	// ExecURL overrides the code-interpreter endpoint of a sandbox.
	ExecURL func(sandboxID string) string
}

type e2bSandboxInfo struct {
	SandboxID       string `json:"sandboxID"`
	EnvdAccessToken string `json:"envdAccessToken"`
	TemplateID      string `json:"templateID"`
	ClientID        string `json:"clientID"`
}

type e2bOutput struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	PNG       string `json:"png"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

// Run creates a sandbox, executes code in it and kills it afterwards.
func (s *E2BSandbox) Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	info, err := s.create(ctx, timeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer killCancel()
		if err := s.kill(killCtx, info.SandboxID); err != nil {
			log.Warnf("failed to kill sandbox %s: %v", info.SandboxID, err)
		}
	}()

	return s.execute(ctx, info, code, timeout)
}

func (s *E2BSandbox) apiURL() string {
	if s.APIURL != "" {
		return strings.TrimRight(s.APIURL, "/")
	}
	return e2bAPIURL
}

func (s *E2BSandbox) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *E2BSandbox) create(ctx context.Context, timeout time.Duration) (*e2bSandboxInfo, error) {
	body, _ := json.Marshal(map[string]any{
		"templateID": e2bTemplate,
		"timeout":    int(timeout.Seconds()),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL()+"/sandboxes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.APIKey)

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to create sandbox: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var info e2bSandboxInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode sandbox: %w", err)
	}
	if info.SandboxID == "" {
		return nil, fmt.Errorf("failed to create sandbox: empty sandbox id")
	}
	return &info, nil
}

func (s *E2BSandbox) execURL(sandboxID string) string {
	if s.ExecURL != nil {
		return s.ExecURL(sandboxID)
	}
	domain := s.Domain
	if domain == "" {
		domain = "e2b.app"
	}
	return fmt.Sprintf("https://%d-%s.%s/execute", e2bJupyter, sandboxID, domain)
}

func (s *E2BSandbox) execute(ctx context.Context, info *e2bSandboxInfo, code string, timeout time.Duration) (*Execution, error) {
	body, _ := json.Marshal(map[string]any{"code": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.execURL(info.SandboxID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if info.EnvdAccessToken != "" {
		req.Header.Set("X-Access-Token", info.EnvdAccessToken)
	}

	client := *s.client()
	client.Timeout = timeout
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("code interpreter returned HTTP %d", resp.StatusCode)
	}
	return readExecution(resp.Body)
}

// readExecution decodes the newline delimited JSON stream of the code interpreter.
func readExecution(r io.Reader) (*Execution, error) {
	exec := &Execution{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var out e2bOutput
		if err := json.Unmarshal(line, &out); err != nil {
			return nil, fmt.Errorf("failed to decode execution output: %w", err)
		}
		switch out.Type {
		case "stdout":
			exec.Stdout = append(exec.Stdout, out.Text)
		case "stderr":
			exec.Stderr = append(exec.Stderr, out.Text)
		case "result":
			exec.Results = append(exec.Results, ExecutionResult{Text: out.Text, PNG: out.PNG})
		case "error":
			exec.Error = fmt.Sprintf("%s: %s", out.Name, out.Value)
			if out.Traceback != "" {
				exec.Error += "\n" + out.Traceback
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return exec, nil
}

func (s *E2BSandbox) kill(ctx context.Context, sandboxID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.apiURL()+"/sandboxes/"+sandboxID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
