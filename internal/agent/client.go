package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/autobuild/internal/credential"
	"github.com/majorcontext/autobuild/internal/log"
	"github.com/majorcontext/autobuild/internal/router"
)

const (
	defaultMaxTurns   = 50
	defaultMaxTokens  = 16000
	heartbeatInterval = 30 * time.Second
)

// Client runs sessions against the Messages API with a filesystem tool
// set, so agents can explore the project and write their artifacts.
// Each Run constructs a fresh SDK client from the session's environment;
// no conversational state survives across sessions.
type Client struct {
	// Token supplies the default-backend credential when the session
	// environment carries no ANTHROPIC_AUTH_TOKEN.
	Token func(ctx context.Context) (string, error)
	// MaxTurns caps the tool loop. Zero means the default.
	MaxTurns int
}

// NewClient returns a Client backed by the standard credential chain.
func NewClient() *Client {
	return &Client{
		Token: func(ctx context.Context) (string, error) {
			cred, err := credential.Resolve(ctx)
			if err != nil {
				return "", err
			}
			return cred.Token, nil
		},
	}
}

// Run executes one agent session: send the prompt, execute tool calls
// until the agent stops requesting them, and report the final status.
func (c *Client) Run(ctx context.Context, session Session) (*Result, error) {
	opts, err := c.options(ctx, session)
	if err != nil {
		return nil, err
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(session.Model),
		MaxTokens: maxTokensFor(session.ThinkingBudget),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(session.AgentType)}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(session.Prompt))},
		Tools:     toolDefs(),
	}
	if session.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{
				BudgetTokens: int64(session.ThinkingBudget),
			},
		}
	}

	ws := &workspace{projectDir: session.ProjectDir, specDir: session.SpecDir}

	maxTurns := c.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	var response strings.Builder
	for turn := 0; turn < maxTurns; turn++ {
		msg, err := c.create(ctx, client, params, session, turn)
		if err != nil {
			return nil, fmt.Errorf("agent session: %w", err)
		}

		var toolResults []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch b := block.AsAny().(type) {
			case anthropic.TextBlock:
				response.WriteString(b.Text)
			case anthropic.ToolUseBlock:
				out, isErr := ws.execute(ctx, b.Name, []byte(b.JSON.Input.Raw()))
				toolResults = append(toolResults, anthropic.NewToolResultBlock(b.ID, out, isErr))
			}
		}

		if len(toolResults) == 0 {
			return &Result{
				Status:   statusFor(msg),
				Response: response.String(),
				Turns:    turn + 1,
			}, nil
		}

		params.Messages = append(params.Messages, msg.ToParam(), anthropic.NewUserMessage(toolResults...))
	}

	log.Warn("agent session hit turn limit", "agent", session.AgentType, "turns", maxTurns)
	return &Result{Status: StatusError, Response: response.String(), Turns: maxTurns}, nil
}

// create issues a single Messages API call, logging a heartbeat while
// the call is in flight so long sessions stay observable.
func (c *Client) create(ctx context.Context, client anthropic.Client, params anthropic.MessageNewParams, session Session, turn int) (*anthropic.Message, error) {
	var msg *anthropic.Message
	start := time.Now()
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		m, err := client.Messages.New(gctx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				log.Debug("agent session running",
					"agent", session.AgentType,
					"turn", turn,
					"elapsed", time.Since(start).Round(time.Second).String())
			}
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msg, nil
}

// options derives SDK client options strictly from the session's routed
// environment, plus the default-backend credential when the environment
// names no auth token.
func (c *Client) options(ctx context.Context, session Session) ([]option.RequestOption, error) {
	token := session.Env[router.EnvAuthToken]
	if token == "" {
		if c.Token == nil {
			return nil, fmt.Errorf("no auth token in session environment and no credential source configured")
		}
		resolved, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = resolved
	}
	opts := []option.RequestOption{option.WithAuthToken(token)}

	if base := session.Env[router.EnvBaseURL]; base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if ms := session.Env[router.EnvTimeoutMS]; ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 {
			log.Debug("ignoring invalid request timeout", "value", ms)
		} else {
			opts = append(opts, option.WithRequestTimeout(time.Duration(v)*time.Millisecond))
		}
	}
	return opts, nil
}

func statusFor(msg *anthropic.Message) string {
	if len(msg.Content) == 0 {
		return StatusError
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return StatusError
	}
	return StatusSuccess
}

func systemPrompt(agentType string) string {
	return fmt.Sprintf("You are the %s agent in an automated two-phase build pipeline. "+
		"You run non-interactively; never ask the user questions. "+
		"Use the provided tools to explore the project and write files.", agentType)
}

// maxTokensFor leaves room for the visible response above the thinking
// budget; the API requires max_tokens to exceed the budget.
func maxTokensFor(thinkingBudget int) int64 {
	if thinkingBudget <= 0 {
		return defaultMaxTokens
	}
	return int64(thinkingBudget) + defaultMaxTokens
}

// Compile-time check that Client implements Runner.
var _ Runner = (*Client)(nil)
