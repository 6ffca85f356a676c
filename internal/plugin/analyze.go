package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yildizm/go-logparser"
	"github.com/yildizm/go-promptfmt"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

const (
	// DefaultWaitMs is returned by EstimateWaitTime when the model gives no
	// usable number.
	DefaultWaitMs = 5000

	// failureReferences is the number of similar failures included.
	failureReferences = 3

	// maxQueryChars bounds the raw log used as a retrieval query.
	maxQueryChars = 2000
)

// FailureAnalysis is the outcome of AnalyzeFailure. It is a best-effort
// heuristic, not a verified diagnosis.
type FailureAnalysis struct {
	Cause      string `json:"cause"`
	Suggestion string `json:"suggestion"`
	Retry      bool   `json:"retry"`
	WaitMs     int    `json:"waitMs"`
	// SimilarFailures are the stored records the prompt was grounded on.
	SimilarFailures []rag.SearchResult `json:"similarFailures,omitempty"`
	// Malformed is true when the reply was not the requested JSON and the
	// raw text was used as Suggestion.
	Malformed bool `json:"malformed,omitempty"`
	// Degraded is true when retrieval or generation fell back to a sentinel.
	Degraded bool `json:"degraded,omitempty"`
}

// failureReply is the JSON shape requested from the model.
type failureReply struct {
	Cause      string `json:"cause"`
	Suggestion string `json:"suggestion"`
	Retry      bool   `json:"retry"`
	WaitMs     int    `json:"waitMs"`
}

// AnalyzeFailure asks the generation provider to explain errorLog, grounded
// on similar stored records.
func (p *Plugin) AnalyzeFailure(ctx context.Context, errorLog string) (*FailureAnalysis, error) {
	release, err := p.acquire("analyze failure")
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = p.context(ctx)
	log := logging.FromContext(ctx)

	if strings.TrimSpace(errorLog) == "" {
		return nil, errs.New(errs.CodeRequestInvalid, "plugin: analyze failure: error log is empty")
	}

	query := errorLines(errorLog)
	ret, err := p.retriever.Retrieve(ctx, query, rag.WithTopK(failureReferences))
	if err != nil {
		return nil, fmt.Errorf("plugin: analyze failure: %w", err)
	}

	pb := promptfmt.New().
		System("You are a test automation engineer diagnosing failed end-to-end UI tests. Be specific and brief.").
		User("Explain why this test failed and whether retrying after a wait is likely to help.\n\nFailure:\n%s", query)
	if len(ret.Results) > 0 {
		pb.AddContext("similar_failures", formatReferences(ret.Texts()))
	}
	prompt := pb.ExpectJSON(&failureReply{}).Build()

	gen := p.generator.Generate(ctx, prompt.SystemPrompt+"\n\n"+prompt.String(), rag.GenerateOptions{Temperature: 0.1})

	out := &FailureAnalysis{SimilarFailures: ret.Results, Degraded: ret.Degraded || gen.Degraded}

	var reply failureReply
	if res := promptfmt.NewResponse(gen.Text).TryParseJSON(&reply); !res.Success {
		log.Warn("failure analysis reply was not JSON, using raw text",
			slog.Any("error", errs.New(errs.CodeMalformedResponse, "plugin: analyze failure: unparseable reply")),
			slog.Bool("degraded", gen.Degraded),
		)
		out.Suggestion = strings.TrimSpace(gen.Text)
		out.Malformed = true
		return out, nil
	}

	out.Cause = reply.Cause
	out.Suggestion = reply.Suggestion
	out.Retry = reply.Retry
	out.WaitMs = max(reply.WaitMs, 0)
	return out, nil
}

// errorLevels are the log levels kept when extracting failure lines.
var errorLevels = map[string]bool{
	"error": true, "err": true, "fatal": true, "critical": true, "crit": true, "panic": true,
}

// errorLines reduces a raw log to its error-level messages. Logs that do
// not parse, or contain no error-level entries, are used as-is (truncated).
func errorLines(raw string) string {
	entries, err := logparser.New().ParseString(raw)
	if err == nil {
		var msgs []string
		for _, e := range entries {
			if errorLevels[strings.ToLower(e.Level)] && strings.TrimSpace(e.Message) != "" {
				msgs = append(msgs, strings.TrimSpace(e.Message))
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "\n")
		}
	}
	raw = strings.TrimSpace(raw)
	if len(raw) > maxQueryChars {
		cut := maxQueryChars
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	return raw
}

// leadingIntRe captures the first integer at the start of a reply.
var leadingIntRe = regexp.MustCompile(`^[^\d-]{0,16}?(\d+)`)

// EstimateWaitTime asks the generation provider how long, in milliseconds,
// a test should wait for selector. Replies without a positive leading
// integer yield DefaultWaitMs.
func (p *Plugin) EstimateWaitTime(ctx context.Context, selector string) (int, error) {
	release, err := p.acquire("estimate wait time")
	if err != nil {
		return 0, err
	}
	defer release()
	ctx = p.context(ctx)

	tpl, err := p.templates.Template(TemplateWait)
	if err != nil {
		return 0, fmt.Errorf("plugin: estimate wait time: %w", err)
	}
	prompt, err := p.renderer.Render(tpl, map[string]string{"selector": selector})
	if err != nil {
		return 0, fmt.Errorf("plugin: estimate wait time: %w", err)
	}

	gen := p.generator.Generate(ctx, prompt, rag.GenerateOptions{MaxTokens: 16, Temperature: 0.1})
	ms := parseWaitMs(gen.Text)
	logging.FromContext(ctx).Debug("wait time estimated",
		slog.String("selector", selector),
		slog.Int("wait_ms", ms),
		slog.Bool("degraded", gen.Degraded),
	)
	return ms, nil
}

// parseWaitMs returns the leading integer of s, or DefaultWaitMs. A short
// non-digit prefix such as "Wait: " is tolerated.
func parseWaitMs(s string) int {
	m := leadingIntRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return DefaultWaitMs
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultWaitMs
	}
	return n
}
