package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// LLMGenerator asks Claude for math problems and falls back to another
// generator for other subjects or when the model call fails.
type LLMGenerator struct {
	client   anthropic.Client
	model    anthropic.Model
	fallback Generator
	log      *slog.Logger
}

// NewLLMGenerator creates an LLMGenerator. An empty model selects Sonnet 4.
func NewLLMGenerator(apiKey, model string, fallback Generator, log *slog.Logger) *LLMGenerator {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeSonnet4_20250514
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLMGenerator{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    m,
		fallback: fallback,
		log:      log,
	}
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, subject Subject, grade int, settings Settings) ([]Problem, error) {
	if subject != Math {
		return g.fallback.Generate(ctx, subject, grade, settings)
	}
	if err := ValidateGrade(grade); err != nil {
		return nil, err
	}
	problems, err := g.generateMath(ctx, grade, settings)
	if err != nil {
		g.log.Warn("llm problem generation failed, using fallback", "grade", grade, "err", err)
		return g.fallback.Generate(ctx, subject, grade, settings)
	}
	return problems, nil
}

func mathPrompt(grade int, s Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You generate math problems for children. Produce exactly %d problems for grade %d.\n", s.ProblemCount, grade)
	fmt.Fprintf(&b, "Use addition and subtraction with numbers up to %d and multiplication tables up to x%d.\n", s.MaxNumber, s.MaxMultiplication)
	if grade == 3 {
		b.WriteString("Mix in a few short word problems.\n")
	}
	b.WriteString("Include related pairs such as 5 + 3 and 3 + 5.\n")
	b.WriteString(`Reply with ONLY a JSON array: [{"question": "Was ist 5 + 3?", "answer": 8}]`)
	return b.String()
}

func (g *LLMGenerator) generateMath(ctx context.Context, grade int, s Settings) ([]Problem, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: mathPrompt(grade, s)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf("Generate %d math problems for grade %d.", s.ProblemCount, grade))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messages api: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	return parseMathProblems(text.String(), s.ProblemCount)
}

// parseMathProblems extracts the JSON array from a model reply.
func parseMathProblems(reply string, count int) ([]Problem, error) {
	start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var raw []struct {
		Question string `json:"question"`
		Answer   int    `json:"answer"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode problems: %w", err)
	}
	if len(raw) < count {
		return nil, fmt.Errorf("model returned %d problems, want %d", len(raw), count)
	}
	problems := make([]Problem, 0, count)
	for _, r := range raw[:count] {
		if strings.TrimSpace(r.Question) == "" {
			return nil, fmt.Errorf("model returned an empty question")
		}
		problems = append(problems, Problem{
			Question:      r.Question,
			CorrectAnswer: fmt.Sprint(r.Answer),
			Type:          "llm",
		})
	}
	return problems, nil
}
