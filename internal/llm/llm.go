package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"truelens/internal/config"
	"truelens/internal/core"
	"truelens/internal/logger"
)

// maxSchemaAttempts bounds retries when the model returns output that does
// not conform to the response schema. Retries use an explicit counter; after
// exhaustion the last validation error is returned and the failure is fatal
// for that unit of work only.
const maxSchemaAttempts = 5

const summarizePrompt = `Return a summary of the news article in a readable point format. Try not to span to more than 6 points.
Return a valid JSON following the example format: { "summary": ["point 1", "point 2", "point 3"] }`

const factualizePrompt = `Return a factuality report from each outlet. The factuality is calculated by averaging what has happened in each article.
The data must be returned in JSON format, paired by the temp_id, which should not be changed as they are used to identify the articles.
Factuality is a float between 0 and 1, where 0 is completely false and 1 is completely true.

EXAMPLE OUTPUT:
{
	"data": [
		{ "temp_id": "temp_id_1", "factuality": 0.8 },
		{ "temp_id": "temp_id_2", "factuality": 0.6 },
		{ "temp_id": "temp_id_3", "factuality": 0.4 }
	]
}`

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "The point form summary of the article",
		},
	},
	Required: []string{"summary"},
}

var factualitySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"data": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"temp_id": {
						Type:        genai.TypeString,
						Description: "The temporary id appended to the article to uniquely identify it",
					},
					"factuality": {
						Type:        genai.TypeNumber,
						Description: "The probability that the article is factual, where 0 is not factual and 1 is factual",
					},
				},
				Required: []string{"temp_id", "factuality"},
			},
		},
	},
	Required: []string{"data"},
}

// SchemaError reports model output that failed schema validation after all
// retries.
type SchemaError struct {
	Op   string
	Msg  string
	Last error
}

func (e *SchemaError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s: invalid model output after %d attempts: %v", e.Op, maxSchemaAttempts, e.Last)
	}
	return fmt.Sprintf("%s: invalid model output after %d attempts: %s", e.Op, maxSchemaAttempts, e.Msg)
}

func (e *SchemaError) Unwrap() error { return e.Last }

// Client wraps the LLM endpoint behind the two narrow pipeline operations.
// It is explicitly constructed and passed in so tests can substitute a fake
// Completer.
type Client struct {
	completer Completer
	cfg       config.Gemini
	log       *slog.Logger
}

// NewClient builds the summarization and factuality client.
func NewClient(completer Completer, cfg config.Gemini) *Client {
	return &Client{completer: completer, cfg: cfg, log: logger.Get()}
}

// Summarize produces a point-form summary of one article, retrying on
// malformed output up to maxSchemaAttempts total attempts.
func (c *Client) Summarize(ctx context.Context, article core.SourceArticle) ([]string, error) {
	req := Request{
		Model:       c.cfg.SummaryModel,
		Temperature: c.cfg.SummaryTemperature,
		System:      summarizePrompt,
		User:        strings.Join(article.Body, "\n"),
		Schema:      summarySchema,
	}

	var lastErr error
	for attempt := 1; attempt <= maxSchemaAttempts; attempt++ {
		raw, err := c.completer.Complete(ctx, req)
		if err != nil {
			lastErr = err
		} else if summary, err := parseSummary(raw); err != nil {
			lastErr = err
		} else {
			return summary, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("summarize attempt failed", "attempt", attempt, "external_id", article.ExternalID, "error", lastErr)
	}

	return nil, &SchemaError{Op: "summarize", Last: lastErr}
}

// Factualize scores one cluster's summarized articles in a single batched
// call. Every input TempID must round-trip unchanged; the whole call is
// retried on validation failure up to maxSchemaAttempts total attempts.
func (c *Client) Factualize(ctx context.Context, articles []core.SummarizedArticle) (core.StoryFactualityReport, error) {
	if len(articles) == 0 {
		return core.StoryFactualityReport{}, nil
	}

	var sb strings.Builder
	for i, article := range articles {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "temp_id: %s\nSummary: %s", article.TempID, strings.Join(article.Summary, " "))
	}

	req := Request{
		Model:       c.cfg.FactualityModel,
		Temperature: c.cfg.FactualityTemperature,
		System:      factualizePrompt,
		User:        sb.String(),
		Schema:      factualitySchema,
	}

	var lastErr error
	for attempt := 1; attempt <= maxSchemaAttempts; attempt++ {
		raw, err := c.completer.Complete(ctx, req)
		if err != nil {
			lastErr = err
		} else if report, err := parseFactuality(raw, articles); err != nil {
			lastErr = err
		} else {
			return report, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("factualize attempt failed", "attempt", attempt, "articles", len(articles), "error", lastErr)
	}

	return nil, &SchemaError{Op: "factualize", Last: lastErr}
}

func parseSummary(raw string) ([]string, error) {
	var parsed struct {
		Summary []string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse summary JSON: %w", err)
	}
	if len(parsed.Summary) == 0 {
		return nil, fmt.Errorf("summary has no points")
	}
	for _, point := range parsed.Summary {
		if strings.TrimSpace(point) == "" {
			return nil, fmt.Errorf("summary contains an empty point")
		}
	}
	return parsed.Summary, nil
}

func parseFactuality(raw string, articles []core.SummarizedArticle) (core.StoryFactualityReport, error) {
	var parsed struct {
		Data []struct {
			TempID     string  `json:"temp_id"`
			Factuality float64 `json:"factuality"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse factuality JSON: %w", err)
	}

	report := make(core.StoryFactualityReport, len(parsed.Data))
	for _, entry := range parsed.Data {
		if entry.Factuality < 0 || entry.Factuality > 1 {
			return nil, fmt.Errorf("factuality %v for %s out of range [0,1]", entry.Factuality, entry.TempID)
		}
		if _, dup := report[entry.TempID]; dup {
			return nil, fmt.Errorf("duplicate temp_id %s in report", entry.TempID)
		}
		report[entry.TempID] = entry.Factuality
	}

	for _, article := range articles {
		if _, ok := report[article.TempID]; !ok {
			return nil, fmt.Errorf("temp_id %s missing from report", article.TempID)
		}
	}
	if len(report) != len(articles) {
		return nil, fmt.Errorf("report has %d entries for %d articles", len(report), len(articles))
	}

	return report, nil
}
