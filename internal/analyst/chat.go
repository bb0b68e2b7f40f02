package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/dossier/pkg/httpclient"
)

const sourceSeparator = "\n--- NEW SOURCE ---\n"

// ChatConfig configures the chat-completions backed analyst.
type ChatConfig struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	Timeout     time.Duration
	MaxInputLen int
	Client      *httpclient.Client
}

// ChatClient implements Validator and Comparator over an OpenAI-compatible
// chat-completions endpoint, requesting strict JSON output.
type ChatClient struct {
	cfg ChatConfig
}

var (
	_ Validator  = (*ChatClient)(nil)
	_ Comparator = (*ChatClient)(nil)
)

// NewChatClient creates a client. Endpoint and APIKey are required.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("analyst endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 35 * time.Second
	}
	if cfg.MaxInputLen <= 0 {
		cfg.MaxInputLen = 30000
	}
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("default client: %w", err)
		}
		cfg.Client = client
	}
	return &ChatClient{cfg: cfg}, nil
}

// Validate asks the model to answer the requirement from the joined source
// texts. The combined input is truncated to the configured safe limit
// before the call.
func (c *ChatClient) Validate(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	combined := truncateInput(strings.Join(req.SourceTexts, sourceSeparator), c.cfg.MaxInputLen)

	prompt := fmt.Sprintf(`You are a market-intelligence analyst.

TASK: Answer the user requirement for %q based on the provided scraped data.
USER REQUIREMENT: %q

SOURCE DATA (from %d websites):
%s

INSTRUCTIONS:
1. VALIDATE: cross-reference the sources, preferring recent and official information.
2. SUMMARIZE: a clear, professional summary in 2-3 sentences.
3. ANSWER: specific to the user's requirement.
4. COMPETITORS: identify the top 3-5 competitors mentioned or known in this industry.
5. Output strict JSON only, matching:
{"answer_found": true, "summary": "...", "extracted_data": {"Key_Answer": {"...": "..."}, "Competitors": ["..."]}, "confidence_score": "High/Medium/Low"}`,
		req.Subject, req.Requirement, len(req.SourceTexts), combined)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("validation call: %w", err)
	}
	return DecodeValidation(raw), nil
}

// Compare asks the model for a side-by-side SWOT analysis of the subject
// against the provided competitor evidence.
func (c *ChatClient) Compare(ctx context.Context, req ComparisonRequest) (*ComparisonResult, error) {
	primaryJSON, err := json.Marshal(req.Primary)
	if err != nil {
		return nil, fmt.Errorf("encoding primary data: %w", err)
	}

	var competitorContext strings.Builder
	for _, comp := range req.Competitors {
		fmt.Fprintf(&competitorContext, "\n--- COMPETITOR: %s ---\n%s\n", comp.Name, comp.Data)
	}

	prompt := fmt.Sprintf(`You are a competitive-comparison analyst.

TASK: Compare %q against the following competitors based on the provided data.

PRIMARY COMPANY DATA:
%s

COMPETITOR DATA:
%s

INSTRUCTIONS:
1. Build a side-by-side SWOT table with exactly 4 rows: Strengths, Weaknesses, Opportunities, Threats.
2. Columns: "category", %q, and one column per competitor.
3. Each cell is a concise bulleted list (as a string) of the top 3 items.
4. No financial metrics; this is purely qualitative SWOT.
5. Output strict JSON only, matching:
{"swot_table": [{"category": "Strengths", "...": "..."}], "market_position_summary": "..."}`,
		req.Subject, primaryJSON, competitorContext.String(), req.Subject)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("comparison call: %w", err)
	}
	return DecodeComparison(raw)
}

// truncateInput caps the combined source text at max bytes, backing up to a
// rune boundary so the prompt never carries an invalid UTF-8 tail.
func truncateInput(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

type chatRequest struct {
	Model          string        `json:"model,omitempty"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete performs one chat-completions round trip and returns the raw
// message content.
func (c *ChatClient) complete(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload := chatRequest{
		Model: c.cfg.Deployment,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful API that outputs only JSON."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.cfg.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}
