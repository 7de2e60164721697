package analysis

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/codeproof/codeproof-go/internal/evidence"
	"github.com/codeproof/codeproof-go/internal/models"
)

// High-precision finding categories. This set is closed: the PR review
// surface only ever posts findings from these categories, so every rule
// here is curated for near-100% precision. Better to miss an issue than
// to flood reviewers with false positives.
const (
	CategorySecretExposure        = "secret_exposure"
	CategoryPrivateKeyExposed     = "private_key_exposed"
	CategoryEnvLeaked             = "env_leaked"
	CategoryMigrationDestructive  = "migration_destructive"
	CategoryAuthMiddlewareRemoved = "auth_middleware_removed"
	CategoryDependencyChanged     = "dependency_changed"
)

type exactPattern struct {
	pattern  *regexp.Regexp
	name     string
	category string
	severity models.FindingSeverity
}

var exactPatterns = []exactPattern{
	{regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), "GitHub Personal Access Token", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59}`), "GitHub Fine-grained PAT", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS Access Key ID", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`sk_live_[a-zA-Z0-9]{24,}`), "Stripe Live Secret Key", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`pk_live_[a-zA-Z0-9]{24,}`), "Stripe Live Publishable Key", CategorySecretExposure, models.SeverityMedium},
	{regexp.MustCompile(`xoxb-[0-9]{11,13}-[0-9]{11,13}-[a-zA-Z0-9]{24}`), "Slack Bot Token", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`xoxp-[0-9]{11,13}-[0-9]{11,13}-[a-zA-Z0-9]{24}`), "Slack User Token", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`SG\.[a-zA-Z0-9_-]{22}\.[a-zA-Z0-9_-]{43}`), "SendGrid API Key", CategorySecretExposure, models.SeverityCritical},
	{regexp.MustCompile(`AC[a-f0-9]{32}`), "Twilio Account SID", CategorySecretExposure, models.SeverityMedium},
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), "Private Key", CategoryPrivateKeyExposed, models.SeverityCritical},
}

type dangerousFile struct {
	pattern  *regexp.Regexp
	name     string
	category string
}

var dangerousFiles = []dangerousFile{
	{regexp.MustCompile(`^\.env$`), ".env file committed", CategoryEnvLeaked},
	{regexp.MustCompile(`^\.env\.(local|production|staging)$`), "Environment file committed", CategoryEnvLeaked},
	{regexp.MustCompile(`id_rsa$|id_ed25519$|id_ecdsa$`), "SSH private key committed", CategoryPrivateKeyExposed},
}

var lockfiles = map[string]bool{
	"composer.lock":     true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"Gemfile.lock":      true,
	"poetry.lock":       true,
}

type migrationPattern struct {
	pattern     *regexp.Regexp
	name        string
	extractsArg bool
}

var destructiveMigrations = []migrationPattern{
	{regexp.MustCompile(`(?i)Schema::drop(?:IfExists)?\s*\(\s*['"](\w+)['"]`), "DROP TABLE", true},
	{regexp.MustCompile(`(?i)\$table->dropColumn\s*\(\s*['"](\w+)['"]`), "DROP COLUMN", true},
	{regexp.MustCompile(`(?i)\$table->dropColumn\s*\(\s*\[([^\]]+)\]`), "DROP COLUMNS", true},
	{regexp.MustCompile(`(?i)Schema::rename\s*\(`), "RENAME TABLE", false},
	{regexp.MustCompile(`(?i)\$table->renameColumn\s*\(`), "RENAME COLUMN", false},
}

var authMiddlewareRemoval = regexp.MustCompile(`(?i)->withoutMiddleware\s*\(\s*['"](auth|verified|can|admin)['"]`)

// Paths where real secrets are vanishingly unlikely.
var secretScanSkipTokens = []string{
	".lock", ".min.js", ".min.css", ".map", ".svg", ".png", ".jpg",
	".gif", ".ico", ".woff", ".ttf",
	"/vendor/", "/node_modules/", "/dist/", "/build/", "__pycache__",
}

// HighPrecisionAnalyzer covers the closed category set that drives the PR
// review surface: exposed secrets and keys, committed env files,
// destructive migrations, removed auth middleware, and lockfile changes.
type HighPrecisionAnalyzer struct{}

func NewHighPrecisionAnalyzer() *HighPrecisionAnalyzer { return &HighPrecisionAnalyzer{} }

func (a *HighPrecisionAnalyzer) Name() string { return "high_precision" }

func (a *HighPrecisionAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for filePath, content := range ctx.FileContents {
		var diffLines map[int]bool
		if ctx.DiffLines != nil {
			diffLines = ctx.DiffLines[filePath]
		}
		findings = append(findings, a.AnalyzeFile(filePath, content, diffLines)...)
	}
	return findings
}

// AnalyzeFile checks one file. diffLines, when non-empty, restricts
// content matches to changed lines; the PR reviewer calls this directly
// with the per-file diff.
func (a *HighPrecisionAnalyzer) AnalyzeFile(filePath, content string, diffLines map[int]bool) []models.FindingMatch {
	var findings []models.FindingMatch

	findings = append(findings, a.checkDangerousFile(filePath)...)

	if lockfiles[path.Base(filePath)] {
		findings = append(findings, models.FindingMatch{
			RuleID:            "HP-LOCKFILE",
			Category:          CategoryDependencyChanged,
			Title:             "Dependency lockfile changed",
			Description:       "Dependency lockfile changed - review for security implications",
			Severity:          models.SeverityInfo,
			Confidence:        models.ConfidenceHigh,
			Remediation:       "Review the dependency diff for unexpected packages or versions.",
			FilePath:          filePath,
			StartLine:         1,
			EndLine:           1,
			Snippet:           fmt.Sprintf("%s was modified", filePath),
			RuleTriggerReason: "Dependency lockfile changed - review for security implications",
			Metadata:          map[string]string{"confidence_basis": "exact_match"},
		})
	}

	if content != "" {
		findings = append(findings, a.checkExactPatterns(filePath, content, diffLines)...)
		if isMigrationFile(filePath) {
			findings = append(findings, a.checkDestructiveMigrations(filePath, content, diffLines)...)
		}
		if isRouteFile(filePath) {
			findings = append(findings, a.checkAuthMiddlewareRemoval(filePath, content, diffLines)...)
		}
	}

	return findings
}

func (a *HighPrecisionAnalyzer) checkDangerousFile(filePath string) []models.FindingMatch {
	var findings []models.FindingMatch
	filename := path.Base(filePath)
	for _, df := range dangerousFiles {
		if !df.pattern.MatchString(filename) {
			continue
		}
		findings = append(findings, models.FindingMatch{
			RuleID:            "HP-FILE",
			Category:          df.category,
			Title:             df.name,
			Description:       fmt.Sprintf("%s - this file should not be committed", df.name),
			Severity:          models.SeverityCritical,
			Confidence:        models.ConfidenceHigh,
			Remediation:       "Remove the file from version control and rotate any contained credentials.",
			FilePath:          filePath,
			StartLine:         1,
			EndLine:           1,
			Snippet:           filePath,
			RuleTriggerReason: fmt.Sprintf("%s - this file should not be committed", df.name),
			Metadata:          map[string]string{"confidence_basis": "exact_match"},
		})
	}
	return findings
}

func (a *HighPrecisionAnalyzer) checkExactPatterns(filePath, content string, diffLines map[int]bool) []models.FindingMatch {
	if shouldSkipSecretScan(filePath) {
		return nil
	}

	var findings []models.FindingMatch
	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1
		if len(diffLines) > 0 && !diffLines[lineNo] {
			continue
		}
		for _, p := range exactPatterns {
			loc := p.pattern.FindStringIndex(line)
			if loc == nil {
				continue
			}
			secret := line[loc[0]:loc[1]]
			redactedLine := line[:loc[0]] + evidence.MaskValue(secret) + line[loc[1]:]
			findings = append(findings, models.FindingMatch{
				RuleID:            "HP-SECRET",
				Category:          p.category,
				Title:             p.name,
				Description:       fmt.Sprintf("%s detected - this should not be in code", p.name),
				Severity:          p.severity,
				Confidence:        models.ConfidenceHigh,
				Remediation:       "Rotate the credential immediately and move it to a secret manager.",
				FilePath:          filePath,
				StartLine:         lineNo,
				EndLine:           lineNo,
				Snippet:           redactedLine,
				RuleTriggerReason: fmt.Sprintf("%s detected - this should not be in code", p.name),
				Metadata: map[string]string{
					"confidence_basis": "exact_match",
					"pattern":          p.name,
					"match":            evidence.MaskValue(secret),
				},
			})
		}
	}
	return findings
}

func (a *HighPrecisionAnalyzer) checkDestructiveMigrations(filePath, content string, diffLines map[int]bool) []models.FindingMatch {
	var findings []models.FindingMatch
	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1
		if len(diffLines) > 0 && !diffLines[lineNo] {
			continue
		}
		for _, mp := range destructiveMigrations {
			m := mp.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			target := ""
			if mp.extractsArg && len(m) > 1 {
				target = m[1]
			}
			reason := mp.name
			if target != "" {
				reason += fmt.Sprintf(" on '%s'", target)
			}
			reason += " - this will cause data loss"

			findings = append(findings, models.FindingMatch{
				RuleID:            "HP-MIGRATION",
				Category:          CategoryMigrationDestructive,
				Title:             mp.name,
				Description:       reason,
				Severity:          models.SeverityCritical,
				Confidence:        models.ConfidenceHigh,
				Remediation:       "Confirm the data is backed up or intentionally discarded before deploying.",
				FilePath:          filePath,
				StartLine:         lineNo,
				EndLine:           lineNo,
				Snippet:           strings.TrimSpace(line),
				RuleTriggerReason: reason,
				NormalizedSink:    target,
				Metadata: map[string]string{
					"confidence_basis": "exact_match",
					"operation":        mp.name,
					"target":           target,
				},
			})
		}
	}
	return findings
}

func (a *HighPrecisionAnalyzer) checkAuthMiddlewareRemoval(filePath, content string, diffLines map[int]bool) []models.FindingMatch {
	var findings []models.FindingMatch
	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1
		if len(diffLines) > 0 && !diffLines[lineNo] {
			continue
		}
		m := authMiddlewareRemoval.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		middleware := m[1]
		reason := fmt.Sprintf("'%s' middleware is being removed - this may expose the route to unauthorized access", middleware)
		findings = append(findings, models.FindingMatch{
			RuleID:            "HP-AUTH",
			Category:          CategoryAuthMiddlewareRemoved,
			Title:             "Auth middleware removed",
			Description:       reason,
			Severity:          models.SeverityCritical,
			Confidence:        models.ConfidenceMedium,
			Remediation:       "Restore the middleware or document why this route is intentionally public.",
			FilePath:          filePath,
			StartLine:         lineNo,
			EndLine:           lineNo,
			Snippet:           strings.TrimSpace(line),
			RuleTriggerReason: reason,
			Metadata: map[string]string{
				"confidence_basis": "structural",
				"middleware":       middleware,
			},
		})
	}
	return findings
}

func isMigrationFile(filePath string) bool {
	return strings.Contains(strings.ToLower(filePath), "migrations/") && strings.HasSuffix(filePath, ".php")
}

func isRouteFile(filePath string) bool {
	return strings.Contains(strings.ToLower(filePath), "routes/") && strings.HasSuffix(filePath, ".php")
}

func shouldSkipSecretScan(filePath string) bool {
	lower := strings.ToLower(filePath)
	for _, token := range secretScanSkipTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
