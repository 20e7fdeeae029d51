package agent

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/forgeflow/forgeflow/workflow"
)

var (
	coverageTotal    = regexp.MustCompile(`TOTAL\s+\d+\s+\d+\s+(\d+)%`)
	coverageFallback = regexp.MustCompile(`Coverage:\s+(\d+)%`)
)

// CheckCoverage runs the test suite under coverage and compares the total
// against the configured threshold. Test failures and unparseable output
// report failed; a clean run below the bar reports below_threshold.
type CheckCoverage struct {
	// Command overrides the coverage invocation, argv style. Empty runs
	// pytest with term coverage reporting.
	Command []string
}

// DefaultThreshold applies when the inputs leave the threshold unset.
const DefaultThreshold = 90

func (a *CheckCoverage) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if in.RepoPath == "" || s.TestFilePath == "" {
		return s.WithOutcome(workflow.DomainCoverage, workflow.StatusFailed,
			"missing repo_path or test suite"), nil
	}

	argv := a.Command
	if len(argv) == 0 {
		argv = []string{"python3", "-m", "pytest", "--cov=src", "--cov-report=term-missing", "tests/"}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = in.RepoPath
	out, runErr := cmd.CombinedOutput()

	percent, ok := parseCoverage(string(out))
	if !ok {
		detail := "coverage total not found in output"
		if runErr != nil {
			detail = fmt.Sprintf("%s: %v", detail, runErr)
		}
		return s.WithOutcome(workflow.DomainCoverage, workflow.StatusFailed, detail), nil
	}
	if runErr != nil {
		next := s
		next.CoveragePercent = percent
		return next.WithOutcome(workflow.DomainCoverage, workflow.StatusFailed,
			fmt.Sprintf("test run failed at %d%% coverage: %v", percent, runErr)), nil
	}

	threshold := in.CoverageThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	next := s
	next.CoveragePercent = percent
	if percent < threshold {
		return next.WithOutcome(workflow.DomainCoverage, workflow.StatusBelowThreshold,
			fmt.Sprintf("coverage %d%% is below the %d%% threshold", percent, threshold)), nil
	}
	return next.WithOutcome(workflow.DomainCoverage, workflow.StatusSuccess,
		fmt.Sprintf("coverage %d%% meets the %d%% threshold", percent, threshold)), nil
}

// parseCoverage pulls the total percentage out of a coverage report,
// preferring the standard TOTAL row and falling back to a bare
// "Coverage: N%" line.
func parseCoverage(output string) (int, bool) {
	for _, re := range []*regexp.Regexp{coverageTotal, coverageFallback} {
		if m := re.FindStringSubmatch(output); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
