package application

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// FailureSource is the text available for one test item. Empty fields are
// treated as absent.
type FailureSource struct {
	Name        string
	Description string
	GistContent string
	JobLogs     string
}

// allSentinel is the test identifier meaning "some unspecified test failed".
const allSentinel = "all"

// matcher extracts candidate test file names from a block of text.
type matcher func(text string) []string

var (
	gistRedCircleRe = regexp.MustCompile(`-\s*:red_circle:\s*:\s*(\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh|yaml))`)
	gistFailRe      = regexp.MustCompile(`FAIL:\s*(\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh))`)

	startingTestRe = regexp.MustCompile(`Starting test (\d{4}-[a-zA-Z0-9_-]+\.py)`)
	numberedFileRe = regexp.MustCompile(`\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh)`)

	logFallbackRes = []*regexp.Regexp{
		regexp.MustCompile(`FAILED\s+[^\s]+\.py::[^\s]+`),
		regexp.MustCompile(`FAIL:\s*\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh)`),
		regexp.MustCompile(`ERROR.*?\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh)`),
		regexp.MustCompile(`\d{4}-[a-zA-Z0-9_-]+\.(?:py|sh).*?AssertionError`),
	}

	descriptionFileRe = regexp.MustCompile(`\d{4}-[a-zA-Z-]+\.(?:py|sh)|\w+\.py|\w+\.sh`)

	numberPrefixRe = regexp.MustCompile(`^\d{4}-`)
	extensionRe    = regexp.MustCompile(`\.(?:py|sh|yaml)$`)
	leadingDigitRe = regexp.MustCompile(`^\d{4}`)
)

const notOkMarker = "not ok "

// ExtractFailures returns the individual failed tests named in src, or nil when
// nothing identifiable was found. Gist content is tried first, then job logs,
// then the status description; the first source yielding candidates wins.
func ExtractFailures(src FailureSource) *model.FailureExtraction {
	candidates, strategy := selectCandidates(src)
	if len(candidates) == 0 {
		return nil
	}

	cleaned := cleanTestNames(candidates)

	slog.Debug("failures extracted",
		"source", src.Name,
		"strategy", strategy,
		"candidates", candidates,
		"failed", cleaned,
	)

	if len(cleaned) == 0 {
		return nil
	}

	return &model.FailureExtraction{
		SourceName:  src.Name,
		FailedFiles: cleaned,
	}
}

func selectCandidates(src FailureSource) ([]string, string) {
	if src.GistContent != "" {
		if found := gistCandidates(src.GistContent); len(found) > 0 {
			return found, "gist"
		}
	}

	if src.JobLogs != "" {
		if found := jobLogCandidates(src.JobLogs); len(found) > 0 {
			return found, "job_log"
		}
	}

	if src.Description != "" {
		return descriptionFileRe.FindAllString(src.Description, -1), "description"
	}

	return nil, ""
}

func gistCandidates(content string) []string {
	found := runMatchers(content,
		captureAll(gistRedCircleRe),
		captureAll(gistFailRe),
	)

	unique := dedupe(found)
	kept := make([]string, 0, len(unique))
	for _, file := range unique {
		if isGistTestFile(file) {
			kept = append(kept, file)
		}
	}
	return kept
}

// isGistTestFile filters out markdown table and heading noise.
func isGistTestFile(file string) bool {
	if file == "" || strings.ContainsAny(file, "|#:") {
		return false
	}
	return strings.Contains(file, "test") || leadingDigitRe.MatchString(file)
}

func jobLogCandidates(logs string) []string {
	matchers := []matcher{pairStartedTests}
	for _, re := range logFallbackRes {
		matchers = append(matchers, fileWithinMatches(re))
	}
	return dedupe(runMatchers(logs, matchers...))
}

// pairStartedTests attributes every "not ok" line to the test file whose
// "Starting test" line most recently preceded it. A "not ok" line with no
// preceding start line is not attributed to anything.
func pairStartedTests(logs string) []string {
	type started struct {
		index int
		file  string
	}

	var starts []started
	var failed []string

	for i, line := range strings.Split(logs, "\n") {
		if m := startingTestRe.FindStringSubmatch(line); m != nil {
			starts = append(starts, started{index: i, file: m[1]})
		}

		if !strings.Contains(line, notOkMarker) {
			continue
		}
		for j := len(starts) - 1; j >= 0; j-- {
			if starts[j].index < i {
				failed = append(failed, starts[j].file)
				break
			}
		}
	}

	return failed
}

func runMatchers(text string, matchers ...matcher) []string {
	var out []string
	for _, m := range matchers {
		out = append(out, m(text)...)
	}
	return out
}

// captureAll returns the first capture group of every match of re.
func captureAll(re *regexp.Regexp) matcher {
	return func(text string) []string {
		var out []string
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
		return out
	}
}

// fileWithinMatches returns the numbered test file contained in every match of re.
func fileWithinMatches(re *regexp.Regexp) matcher {
	return func(text string) []string {
		var out []string
		for _, m := range re.FindAllString(text, -1) {
			if file := numberedFileRe.FindString(m); file != "" {
				out = append(out, file)
			}
		}
		return out
	}
}

// cleanTestNames strips the numeric prefix and extension from each file and
// drops the "all" sentinel.
func cleanTestNames(files []string) []string {
	cleaned := make([]string, 0, len(files))
	for _, file := range files {
		name := numberPrefixRe.ReplaceAllString(file, "")
		name = extensionRe.ReplaceAllString(name, "")
		if name == allSentinel {
			continue
		}
		cleaned = append(cleaned, name)
	}
	return cleaned
}

// dedupe removes repeated values, keeping the first occurrence of each.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
