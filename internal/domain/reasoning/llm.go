package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kestrelworks/sentinel/pkg/logger"
)

// Default LLM client configuration constants.
const (
	defaultLLMTimeout     = 8 * time.Second
	defaultLLMTemperature = 0.1
	maxContextLines       = 5
)

const systemPrompt = "You are a logistics dispatch analyst. Assess the disruption " +
	"against the shipment and reply with exactly one line starting with " +
	"CRITICAL, WARNING, or ADVISORY, followed by a one-sentence justification."

// LLMOption applies a configuration option to the LLM strategy.
type LLMOption func(*LLM)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) LLMOption {
	return func(l *LLM) {
		if c != nil {
			l.client = c
		}
	}
}

// WithTimeout bounds a single completion call.
func WithTimeout(d time.Duration) LLMOption {
	return func(l *LLM) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// LLM calls an OpenAI-compatible chat completions endpoint and parses
// the tiered verdict out of the reply. Construct with NewLLM; select it
// only when credentials are configured.
type LLM struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
	client   *http.Client
	log      logger.Logger
}

// NewLLM creates the LLM-backed strategy.
func NewLLM(endpoint, apiKey, model string, opts ...LLMOption) *LLM {
	l := &LLM{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		timeout:  defaultLLMTimeout,
		client:   &http.Client{},
		log:      logger.Named("reasoning-llm"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements Strategy.
func (l *LLM) Name() string { return "llm" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze implements Strategy. Backend failures return errors wrapping
// ErrUnavailable so the caller can fall back.
func (l *LLM) Analyze(ctx context.Context, in Input) (Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: l.userPrompt(in)},
		},
		Temperature: defaultLLMTemperature,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("completion call failed: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Assessment{}, fmt.Errorf("completion status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Assessment{}, fmt.Errorf("decode completion response: %w: %w", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return Assessment{}, fmt.Errorf("empty completion: %w", ErrUnavailable)
	}

	return l.parseAssessment(parsed.Choices[0].Message.Content, in), nil
}

func (l *LLM) userPrompt(in Input) string {
	var b strings.Builder
	e := in.Disruption.Event
	fmt.Fprintf(&b, "Disruption: %s (severity %d): %s\n", e.Category, e.Severity, e.Text)
	fmt.Fprintf(&b, "Route: %s, risk score %.0f/100\n", in.Disruption.RouteID, in.Disruption.RiskScore)
	for _, s := range in.Shipments {
		fmt.Fprintf(&b, "Shipment %s: value %.0f, perishable=%t, eta %d days\n",
			s.ID, s.Value, s.Perishable, s.ETADays)
	}
	if len(in.Context) > 0 {
		b.WriteString("Similar prior events:\n")
		for i, c := range in.Context {
			if i == maxContextLines {
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n", c.Event.Text, c.Event.Timestamp.Format(time.RFC3339))
		}
	}
	return b.String()
}

// parseAssessment extracts the verdict tier from the reply. Confidence
// blends the model's implied decisiveness with the amount of grounding
// context; an unparseable reply degrades to an advisory at low
// confidence rather than failing the cycle.
func (l *LLM) parseAssessment(reply string, in Input) Assessment {
	text := strings.TrimSpace(reply)
	upper := strings.ToUpper(text)

	verdict := VerdictAdvisory
	conf := 0.50
	switch {
	case strings.HasPrefix(upper, string(VerdictCritical)):
		verdict = VerdictCritical
		conf = 0.90
	case strings.HasPrefix(upper, string(VerdictWarning)):
		verdict = VerdictWarning
		conf = 0.85
	case strings.HasPrefix(upper, string(VerdictAdvisory)):
		verdict = VerdictAdvisory
		conf = 0.80
	default:
		l.log.Warn(context.Background(), "unparseable verdict in completion",
			logger.String("reply", firstLine(text)))
	}

	if len(in.Context) == 0 && conf > 0.60 {
		conf -= 0.10 // no grounding context: trim confidence
	}

	return Assessment{Verdict: verdict, Summary: firstLine(text), Confidence: conf}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
