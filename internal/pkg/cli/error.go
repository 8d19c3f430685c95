package cli

import (
	"fmt"
	"strings"

	"github.com/openshift/operator-upgradepath/internal/pkg/errcode"
)

// CodeExiter is an interface implemented by errors that result in an exit code
type CodeExiter interface {
	ExitCode() int
}

// RunError summarizes the failures of a run. Each failing catalog and each
// operator that could not be resolved is counted, the run itself went to
// completion.
type RunError struct {
	FailedCatalogs  []string
	FailedOperators []string
}

func (e *RunError) Error() string {
	var parts []string
	if len(e.FailedCatalogs) > 0 {
		parts = append(parts, fmt.Sprintf("%d catalog(s) failed: %s", len(e.FailedCatalogs), strings.Join(e.FailedCatalogs, ", ")))
	}
	if len(e.FailedOperators) > 0 {
		parts = append(parts, fmt.Sprintf("%d operator(s) could not be resolved: %s", len(e.FailedOperators), strings.Join(e.FailedOperators, ", ")))
	}
	return "run error: " + strings.Join(parts, "; ")
}

func (e *RunError) ExitCode() int {
	if e == nil {
		return 0
	}

	exitCode := 0
	if len(e.FailedCatalogs) > 0 {
		exitCode |= errcode.CatalogErr
	}
	if len(e.FailedOperators) > 0 {
		exitCode |= errcode.OperatorErr
	}
	return exitCode
}

func (e *RunError) empty() bool {
	return len(e.FailedCatalogs) == 0 && len(e.FailedOperators) == 0
}
