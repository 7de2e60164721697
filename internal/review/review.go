package review

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeproof/codeproof-go/internal/analysis"
	"github.com/codeproof/codeproof-go/internal/github"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

const maxInlineComments = 10

// GitHubAPI is the slice of the GitHub client the reviewer uses.
type GitHubAPI interface {
	PullRequest(ctx context.Context, repo models.Repository, number int) (*github.PullRequestInfo, error)
	PullRequestFiles(ctx context.Context, repo models.Repository, number int) ([]github.PRFile, error)
	FileContent(ctx context.Context, repo models.Repository, path, ref string) (string, error)
	CreatePRReview(ctx context.Context, repo models.Repository, number int, event, body string, comments []github.ReviewComment) error
}

// Result summarizes one posted review.
type Result struct {
	PRNumber      int
	HeadSHA       string
	FilesChanged  int
	Findings      []models.FindingMatch
	CriticalCount int
	Event         string
}

// Reviewer runs the high-precision analyzer over a pull request's changed
// lines and posts the outcome as a review. Only the closed-category,
// exact-match family runs here: a PR review must not cry wolf.
type Reviewer struct {
	gh       GitHubAPI
	analyzer *analysis.HighPrecisionAnalyzer
	log      *logging.Logger
}

func NewReviewer(gh GitHubAPI, log *logging.Logger) *Reviewer {
	return &Reviewer{
		gh:       gh,
		analyzer: analysis.NewHighPrecisionAnalyzer(),
		log:      log.WithComponent("review"),
	}
}

// ReviewPullRequest analyzes every added or modified file at the PR head,
// scoped to the lines the diff touched, and posts the review.
func (r *Reviewer) ReviewPullRequest(ctx context.Context, repo models.Repository, number int) (*Result, error) {
	pr, err := r.gh.PullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	files, err := r.gh.PullRequestFiles(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	var findings []models.FindingMatch
	for _, f := range files {
		switch f.Status {
		case "added", "modified":
		default:
			continue
		}

		diffLines := ParseDiffLines(f.Patch)

		content, err := r.gh.FileContent(ctx, repo, f.Filename, pr.HeadSHA)
		if err != nil {
			// Dangerous-file checks need only the path.
			r.log.Warn("could not fetch file for review", "file", f.Filename, "error", err)
			content = ""
		}

		findings = append(findings, r.analyzer.AnalyzeFile(f.Filename, content, diffLines)...)
	}

	event := r.postReview(ctx, repo, number, findings)

	result := &Result{
		PRNumber:      number,
		HeadSHA:       pr.HeadSHA,
		FilesChanged:  len(files),
		Findings:      findings,
		CriticalCount: countSeverity(findings, models.SeverityCritical),
		Event:         event,
	}
	r.log.Info("pr reviewed",
		"repo", repo.FullName, "pr", number,
		"findings", len(findings), "critical", result.CriticalCount, "event", event)
	return result, nil
}

var hunkHeader = regexp.MustCompile(`\+(\d+)`)

// ParseDiffLines extracts the added line numbers from a unified diff
// patch. Returns nil for an empty patch, which analyzers treat as
// whole-file scope.
func ParseDiffLines(patch string) map[int]bool {
	if patch == "" {
		return nil
	}

	lines := map[int]bool{}
	current := 0
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			if m := hunkHeader.FindStringSubmatch(line); m != nil {
				n, _ := strconv.Atoi(m[1])
				current = n - 1
			}
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			current++
			lines[current] = true
		case !strings.HasPrefix(line, "-"):
			current++
		}
	}
	return lines
}

func (r *Reviewer) postReview(ctx context.Context, repo models.Repository, number int, findings []models.FindingMatch) string {
	if len(findings) == 0 {
		if err := r.gh.CreatePRReview(ctx, repo, number, "COMMENT",
			"**CodeProof Review**\n\nNo high-risk issues detected.", nil); err != nil {
			r.log.Error("failed to post review", "error", err)
		}
		return "COMMENT"
	}

	critical := filterSeverity(findings, models.SeverityCritical)
	warnings := filterSeverity(findings, models.SeverityMedium)
	info := filterSeverity(findings, models.SeverityInfo)

	var b strings.Builder
	b.WriteString("**CodeProof Review**\n")

	if len(critical) > 0 {
		fmt.Fprintf(&b, "### :red_circle: Critical (%d)\n", len(critical))
		for _, f := range critical {
			fmt.Fprintf(&b, "- **%s** in `%s:%d`\n", f.Title, f.FilePath, f.StartLine)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(&b, "\n### :yellow_circle: Warnings (%d)\n", len(warnings))
		for _, f := range warnings {
			fmt.Fprintf(&b, "- %s in `%s`\n", f.RuleTriggerReason, f.FilePath)
		}
	}
	if len(info) > 0 {
		fmt.Fprintf(&b, "\n### :blue_circle: Info (%d)\n%d informational items.\n", len(info), len(info))
	}

	// Inline comments for critical findings only.
	var comments []github.ReviewComment
	for _, f := range critical {
		if len(comments) >= maxInlineComments {
			break
		}
		snippet := f.Snippet
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		comments = append(comments, github.ReviewComment{
			Path: f.FilePath,
			Line: f.StartLine,
			Body: fmt.Sprintf("**CRITICAL**: %s\n\n%s\n\n```\n%s\n```", f.Title, f.RuleTriggerReason, snippet),
		})
	}

	event := "COMMENT"
	if len(critical) > 0 {
		event = "REQUEST_CHANGES"
	}

	if err := r.gh.CreatePRReview(ctx, repo, number, event, b.String(), comments); err != nil {
		r.log.Error("failed to post review", "error", err)
	}
	return event
}

func filterSeverity(findings []models.FindingMatch, sev models.FindingSeverity) []models.FindingMatch {
	var out []models.FindingMatch
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func countSeverity(findings []models.FindingMatch, sev models.FindingSeverity) int {
	return len(filterSeverity(findings, sev))
}
