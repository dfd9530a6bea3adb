// Command researchctl is a command-line client and admin tool for the
// research API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/auth"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/client"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/repository"
)

var (
	serverURL string
	apiKey    string
	token     string
)

var rootCmd = &cobra.Command{
	Use:           "researchctl",
	Short:         "Client and admin tool for the deep research API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cfg := config.Load()

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("RESEARCH_SERVER", fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)), "API server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("RESEARCH_API_KEY"), "API key sent as X-Api-Key")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("RESEARCH_TOKEN"), "Bearer token")

	seedUserCmd.Flags().String("email", "", "User email (required)")
	seedUserCmd.Flags().String("name", "", "Display name")
	seedUserCmd.Flags().String("tier", string(domain.RateLimitTierFree), "Rate limit tier (FREE, PRO, UNLIMITED)")
	seedUserCmd.Flags().String("key", "", "API key to assign; generated when empty")
	_ = seedUserCmd.MarkFlagRequired("email")

	tokenCmd.Flags().String("user-id", "", "User to issue the token for (required)")
	_ = tokenCmd.MarkFlagRequired("user-id")

	sessionsCreateCmd.Flags().String("title", "", "Session title")
	researchCmd.Flags().StringSlice("tags", nil, "Tracing tags")

	streamCmd.Flags().String("thread", "", "Thread id; a new one is generated when empty")
	streamCmd.Flags().String("hitl", cfg.DefaultHITLMode, "HITL mode (none, sensitive, checkpoints, full)")
	streamCmd.Flags().String("decision", "", "Answer every approval with this decision instead of prompting")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsCreateCmd)
	rootCmd.AddCommand(seedUserCmd, tokenCmd, sessionsCmd, researchCmd, streamCmd, watchCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithAPIKey(apiKey), client.WithToken(token))
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var seedUserCmd = &cobra.Command{
	Use:   "seed-user",
	Short: "Create a user directly in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		tier, _ := cmd.Flags().GetString("tier")
		key, _ := cmd.Flags().GetString("key")

		t := domain.RateLimitTier(strings.ToUpper(tier))
		if !slices.Contains([]domain.RateLimitTier{domain.RateLimitTierFree, domain.RateLimitTierPro, domain.RateLimitTierUnlimited}, t) {
			return fmt.Errorf("unknown tier %q", tier)
		}
		if key == "" {
			key = "sk-" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		st, err := openStore(config.Load())
		if err != nil {
			return err
		}
		defer st.Close()

		user := &domain.User{Email: email, Name: name, APIKey: key, RateLimitTier: t}
		if err := st.CreateUser(cmd.Context(), user); err != nil {
			return err
		}
		return printJSON(map[string]any{"id": user.ID, "email": user.Email, "rate_limit_tier": user.RateLimitTier, "api_key": key})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an existing user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		cfg := config.Load()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := st.GetUser(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s not found", userID)
		}
		tok, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpireMinutes).Issue(user.ID, 0)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage research sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		resp, err := newClient().CreateSession(cmd.Context(), title)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var researchCmd = &cobra.Command{
	Use:   "research <session-id> <query>",
	Short: "Run a research query and wait for the report",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringSlice("tags")
		resp, err := newClient().Research(cmd.Context(), args[0], strings.Join(args[1:], " "), tags)
		if err != nil {
			return err
		}
		fmt.Println(resp.Response)
		if len(resp.ToolCalls) > 0 {
			fmt.Fprintf(os.Stderr, "\n%d tool calls, request %s\n", len(resp.ToolCalls), resp.RequestID)
		}
		return nil
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream <message>",
	Short: "Run the agent over AG-UI and print its events",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	thread, _ := cmd.Flags().GetString("thread")
	hitl, _ := cmd.Flags().GetString("hitl")
	fixedDecision, _ := cmd.Flags().GetString("decision")
	if thread == "" {
		thread = uuid.NewString()
	}

	content, _ := json.Marshal(strings.Join(args, " "))
	in := &agui.RunAgentInput{
		ThreadID:       thread,
		RunID:          uuid.NewString(),
		Messages:       []agui.Message{{ID: uuid.NewString(), Role: "user", Content: content}},
		ForwardedProps: map[string]any{"hitl_mode": hitl},
	}

	c := newClient()
	stdin := bufio.NewReader(os.Stdin)
	ctx := cmd.Context()
	return c.Stream(ctx, in, func(event client.SSEEvent) error {
		if interrupt, ok := event.Interrupt(); ok {
			return answerInterrupt(ctx, c, stdin, interrupt.ApprovalID, interrupt.ToolName, interrupt.Args, interrupt.AllowedDecisions, fixedDecision)
		}
		printEvent(event)
		return nil
	})
}

func answerInterrupt(ctx context.Context, c *client.Client, stdin *bufio.Reader, approvalID, toolName string, toolArgs map[string]any, allowed []string, fixed string) error {
	argsJSON, _ := json.Marshal(toolArgs)
	fmt.Fprintf(os.Stderr, "\n[approval %s] %s %s\n", approvalID, toolName, argsJSON)

	decision := fixed
	for decision == "" || !slices.Contains(allowed, decision) {
		fmt.Fprintf(os.Stderr, "decision (%s): ", strings.Join(allowed, "/"))
		line, err := stdin.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read decision: %w", err)
		}
		decision = strings.TrimSpace(line)
		fixed = ""
	}

	resp, err := c.Decide(ctx, approvalID, domain.ApprovalDecisionRequest{Decision: decision})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "[approval %s] %s\n", resp.ApprovalID, resp.Status)
	return nil
}

func printEvent(event client.SSEEvent) {
	var ev map[string]any
	if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
		fmt.Println(event.Data)
		return
	}
	switch ev["type"] {
	case "TEXT_MESSAGE_CONTENT":
		fmt.Print(ev["delta"])
	case "TEXT_MESSAGE_END":
		fmt.Println()
	case "TOOL_CALL_START":
		fmt.Fprintf(os.Stderr, "-> %v\n", ev["toolCallName"])
	case "TOOL_CALL_RESULT":
		fmt.Fprintf(os.Stderr, "<- %s\n", truncate(fmt.Sprint(ev["content"]), 200))
	case "RUN_ERROR":
		fmt.Fprintf(os.Stderr, "run error: %v\n", ev["message"])
	case "watching":
		fmt.Fprintf(os.Stderr, "watching %v\n", ev["thread_id"])
	case "RUN_STARTED", "RUN_FINISHED", "STEP_STARTED", "STEP_FINISHED":
		fmt.Fprintf(os.Stderr, "[%v]\n", ev["type"])
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow the events of a session over websocket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		addr, err := c.WatchURL(args[0])
		if err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), addr, c.AuthHeader())
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close()

		go func() {
			<-cmd.Context().Done()
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if cmd.Context().Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			printEvent(client.SSEEvent{Data: string(data)})
		}
	},
}
