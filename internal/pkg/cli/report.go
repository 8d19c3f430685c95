package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/openshift/operator-upgradepath/internal/pkg/emoji"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
	"github.com/openshift/operator-upgradepath/internal/pkg/resolver"
)

// Report is the outcome of one run, in catalog order.
type Report struct {
	RunID    string          `json:"runID"`
	Catalogs []CatalogReport `json:"catalogs"`
}

type CatalogReport struct {
	Image     string           `json:"image"`
	Error     string           `json:"error,omitempty"`
	Operators []OperatorReport `json:"operators,omitempty"`
}

type OperatorReport struct {
	Package     string                `json:"package"`
	Channel     string                `json:"channel,omitempty"`
	FromVersion string                `json:"fromVersion,omitempty"`
	UpgradePath *resolver.UpgradePath `json:"upgradePath,omitempty"`
	Reason      string                `json:"reason,omitempty"`
	Error       string                `json:"error,omitempty"`
}

func NewReport() *Report {
	return &Report{RunID: uuid.New().String()}
}

func newOperatorReport(res resolver.Result) OperatorReport {
	or := OperatorReport{
		Package:     res.Operator.Name,
		Channel:     res.Operator.Channel,
		FromVersion: res.Operator.FromVersion,
		UpgradePath: res.Path,
	}
	if res.Path != nil {
		or.Channel = res.Path.Channel
	}
	if res.Err != nil {
		or.Error = res.Err.Error()
		var rerr *resolver.Error
		if errors.As(res.Err, &rerr) {
			or.Reason = rerr.Reason
		}
	}
	return or
}

// RunError returns the failures recorded in the report, or nil.
func (r *Report) RunError() error {
	runErr := &RunError{}
	for _, c := range r.Catalogs {
		if c.Error != "" {
			runErr.FailedCatalogs = append(runErr.FailedCatalogs, c.Image)
			continue
		}
		for _, op := range c.Operators {
			if op.Error != "" {
				runErr.FailedOperators = append(runErr.FailedOperators, c.Image+" "+op.Package)
			}
		}
	}
	if runErr.empty() {
		return nil
	}
	return runErr
}

// Log renders the report, one line per operator.
func (r *Report) Log(log clog.PluggableLoggerInterface) {
	log.Info(emoji.Memo+" upgrade paths (run %s)", r.RunID)
	for _, c := range r.Catalogs {
		if c.Error != "" {
			log.Error(emoji.CrossMark+" %s: %s", c.Image, c.Error)
			continue
		}
		log.Info(emoji.Package+" %s", c.Image)
		for _, op := range c.Operators {
			if op.Error != "" {
				log.Error("  "+emoji.CrossMark+" %s: %s", op.Package, op.Error)
				continue
			}
			log.Info("  "+emoji.CheckMarkButton+" %s (%s): %s", op.Package, op.Channel, pathString(op.UpgradePath))
		}
	}
}

func pathString(p *resolver.UpgradePath) string {
	versions := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		versions = append(versions, s.Version)
	}
	return strings.Join(versions, " "+emoji.RightArrow+" ")
}

// WriteFile stores the report as YAML.
func (r *Report) WriteFile(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
