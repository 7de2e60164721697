package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeproof/codeproof-go/internal/errors"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

const degradedSourceCount = 3

const systemPrompt = `You are a code analysis assistant. Answer the question based ONLY on the provided sources.

CRITICAL RULES:
1. You MUST output valid JSON matching the schema below
2. Every claim section MUST reference at least one source_id
3. Every claim section MUST carry one or more quoted_spans; each quote MUST be a verbatim substring of its referenced source
4. If you cannot answer part of the question, put it in "unknowns"
5. Do NOT invent file paths, line numbers, or quotes

OUTPUT SCHEMA:
{
    "sections": [
        {
            "heading": "Authentication entry point",
            "text": "The login flow starts in ...",
            "source_ids": [1, 3],
            "quoted_spans": [{"source_id": 1, "quote": "def login("}]
        }
    ],
    "unknowns": [
        "I could not find where password reset emails are sent"
    ]
}

Respond with ONLY the JSON object, no other text.`

// Engine turns retrieved sources into a proof-carrying answer: every claim
// cites sources and its quotes are verified against the retrieved content
// before the answer is trusted.
type Engine struct {
	completer llm.Completer
	log       *logging.Logger
}

func NewEngine(completer llm.Completer, log *logging.Logger) *Engine {
	return &Engine{completer: completer, log: log.WithComponent("answer")}
}

// Answer generates and validates an answer for the question. Zero sources
// short-circuits to a no-evidence answer; unusable model output degrades to
// an evidence-only answer rather than failing.
func (e *Engine) Answer(ctx context.Context, repo models.Repository, question string, sources []models.RetrievedSource) (*models.Answer, error) {
	if len(sources) == 0 {
		return e.noEvidenceAnswer(repo, question), nil
	}

	prompt := buildUserPrompt(question, sources)

	response, err := e.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, errors.LLMError(err, "answer generation failed")
	}

	parsed := parseAnswerJSON(response)
	if parsed == nil {
		e.log.Warn("answer was not valid JSON, retrying once")
		response, err = e.completer.Complete(ctx, systemPrompt, prompt+"\n\nRemember: Output ONLY valid JSON.")
		if err != nil {
			return nil, errors.LLMError(err, "answer retry failed")
		}
		parsed = parseAnswerJSON(response)
	}
	if parsed == nil {
		e.log.Warn("answer JSON unrecoverable, returning evidence-only answer")
		return e.evidenceOnlyAnswer(repo, question, sources), nil
	}

	return e.validate(repo, question, parsed, sources), nil
}

// buildUserPrompt numbers the sources so the model can only cite what it
// was shown.
func buildUserPrompt(question string, sources []models.RetrievedSource) string {
	var b strings.Builder
	b.WriteString("SOURCES:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "[Source %d] %s:%d-%d", s.Index, s.FilePath, s.StartLine, s.EndLine)
		if s.SymbolName != "" {
			fmt.Fprintf(&b, " (%s)", s.SymbolName)
		}
		fmt.Fprintf(&b, "\n```\n%s\n```\n\n", s.Content)
	}
	fmt.Fprintf(&b, "QUESTION: %s", question)
	return b.String()
}

func (e *Engine) validate(repo models.Repository, question string, parsed *rawAnswer, sources []models.RetrievedSource) *models.Answer {
	bySourceID := map[int]models.RetrievedSource{}
	for _, s := range sources {
		bySourceID[s.Index] = s
	}

	var (
		sections         []models.AnswerSection
		validationErrors []string
		verifiedQuotes   int
		totalQuotes      int
		verifiedSections int
	)
	citedIDs := map[int]bool{}

	for i, raw := range parsed.Sections {
		if strings.TrimSpace(raw.Text) == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("section %d has no text", i))
			continue
		}

		var validIDs []int
		for _, id := range raw.SourceIDs {
			if _, ok := bySourceID[id]; ok {
				validIDs = append(validIDs, id)
			} else {
				validationErrors = append(validationErrors, fmt.Sprintf("section %d cites unknown source %d", i, id))
			}
		}
		if len(validIDs) == 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("section %d has no valid source_ids", i))
			continue
		}

		var spans []models.QuotedSpan
		sectionVerified := 0
		for _, span := range raw.QuotedSpans {
			totalQuotes++
			verified := false
			if src, ok := bySourceID[span.SourceID]; ok {
				verified = VerifyQuote(span.Quote, src.Content)
			}
			if verified {
				verifiedQuotes++
				sectionVerified++
			}
			spans = append(spans, models.QuotedSpan{
				SourceID: span.SourceID,
				Quote:    span.Quote,
				Verified: verified,
			})
		}

		// A section with quotes that all failed is a fabrication signal
		// and is dropped. A quoteless section survives but is flagged.
		if len(spans) > 0 && sectionVerified == 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("section %d: no quoted span could be verified", i))
			continue
		}
		if sectionVerified > 0 {
			verifiedSections++
		}

		for _, id := range validIDs {
			citedIDs[id] = true
		}
		sections = append(sections, models.AnswerSection{
			Heading:     raw.Heading,
			Text:        raw.Text,
			SourceIDs:   validIDs,
			QuotedSpans: spans,
			Unverified:  len(spans) == 0,
		})
	}

	uniqueFiles := map[string]bool{}
	var scoreSum float64
	for id := range citedIDs {
		src := bySourceID[id]
		uniqueFiles[src.FilePath] = true
		scoreSum += src.Score
	}
	avgScore := 0.0
	if len(citedIDs) > 0 {
		avgScore = scoreSum / float64(len(citedIDs))
	}

	tier := confidenceTier(verifiedQuotes, totalQuotes, verifiedSections, len(uniqueFiles), avgScore)

	return &models.Answer{
		ID:             uuid.NewString(),
		RepoID:         repo.ID,
		Question:       question,
		Sections:       sections,
		Unknowns:       parsed.Unknowns,
		ConfidenceTier: tier,
		ConfidenceFactors: map[string]float64{
			"verified_quotes":   float64(verifiedQuotes),
			"total_quotes":      float64(totalQuotes),
			"verified_sections": float64(verifiedSections),
			"unique_files":      float64(len(uniqueFiles)),
			"avg_score":         avgScore,
		},
		ValidationPassed: len(validationErrors) == 0,
		ValidationErrors: validationErrors,
		Citations:        buildCitations(repo, sources, citedIDs),
		CreatedAt:        time.Now().UTC(),
	}
}

// confidenceTier maps quote verification outcomes to a discrete trust
// level. V verified of T total quotes, S sections with a verified quote,
// F unique cited files.
func confidenceTier(v, t, s, f int, avgScore float64) models.ConfidenceTier {
	ratio := 0.0
	if t > 0 {
		ratio = float64(v) / float64(t)
	}
	switch {
	case v == 0:
		return models.TierNone
	case ratio < 0.5:
		return models.TierLow
	case s >= 2 && f >= 2 && ratio >= 0.75 && avgScore >= 0.5:
		return models.TierHigh
	case s >= 1 && avgScore >= 0.3:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

func buildCitations(repo models.Repository, sources []models.RetrievedSource, citedIDs map[int]bool) []models.Citation {
	var citations []models.Citation
	for _, s := range sources {
		if !citedIDs[s.Index] {
			continue
		}
		citations = append(citations, models.Citation{
			SourceIndex: s.Index,
			FilePath:    s.FilePath,
			StartLine:   s.StartLine,
			EndLine:     s.EndLine,
			Snippet:     s.Content,
			SymbolName:  s.SymbolName,
			GitHubURL:   githubURL(repo, s),
		})
	}
	return citations
}

func githubURL(repo models.Repository, s models.RetrievedSource) string {
	if repo.FullName == "" || repo.LastIndexedCommit == "" {
		return ""
	}
	return fmt.Sprintf("https://github.com/%s/blob/%s/%s#L%d-L%d",
		repo.FullName, repo.LastIndexedCommit, s.FilePath, s.StartLine, s.EndLine)
}

// noEvidenceAnswer is the zero-source result: the question itself becomes
// the unknown.
func (e *Engine) noEvidenceAnswer(repo models.Repository, question string) *models.Answer {
	return &models.Answer{
		ID:                uuid.NewString(),
		RepoID:            repo.ID,
		Question:          question,
		Unknowns:          []string{question},
		ConfidenceTier:    models.TierNone,
		ConfidenceFactors: map[string]float64{},
		ValidationPassed:  false,
		ValidationErrors:  []string{"no sources retrieved"},
		CreatedAt:         time.Now().UTC(),
	}
}

// evidenceOnlyAnswer is the fallback when the model never produced usable
// JSON: hand back the strongest retrieved sources with no claims attached.
func (e *Engine) evidenceOnlyAnswer(repo models.Repository, question string, sources []models.RetrievedSource) *models.Answer {
	top := sources
	if len(top) > degradedSourceCount {
		top = top[:degradedSourceCount]
	}
	citedIDs := map[int]bool{}
	var ids []int
	for _, s := range top {
		citedIDs[s.Index] = true
		ids = append(ids, s.Index)
	}

	return &models.Answer{
		ID:       uuid.NewString(),
		RepoID:   repo.ID,
		Question: question,
		Sections: []models.AnswerSection{{
			Heading:    "Relevant code",
			Text:       "A structured answer could not be generated. The most relevant sources found for this question are cited below.",
			SourceIDs:  ids,
			Unverified: true,
		}},
		Unknowns:          []string{question},
		ConfidenceTier:    models.TierNone,
		ConfidenceFactors: map[string]float64{},
		ValidationPassed:  false,
		ValidationErrors:  []string{"JSON parsing failed"},
		Citations:         buildCitations(repo, top, citedIDs),
		CreatedAt:         time.Now().UTC(),
	}
}
