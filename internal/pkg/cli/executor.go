package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/openshift/operator-upgradepath/internal/pkg/api/v1alpha1"
	"github.com/openshift/operator-upgradepath/internal/pkg/archive"
	"github.com/openshift/operator-upgradepath/internal/pkg/catalog"
	"github.com/openshift/operator-upgradepath/internal/pkg/config"
	"github.com/openshift/operator-upgradepath/internal/pkg/consts"
	"github.com/openshift/operator-upgradepath/internal/pkg/emoji"
	clog "github.com/openshift/operator-upgradepath/internal/pkg/log"
	"github.com/openshift/operator-upgradepath/internal/pkg/registry"
	"github.com/openshift/operator-upgradepath/internal/pkg/version"
	"github.com/openshift/operator-upgradepath/internal/pkg/workspace"
)

var (
	longDesc = templates.LongDesc(
		`
		Compute the upgrade path of operators published in file-based catalog images.

		Each catalog image listed in the filter configuration is pulled from its registry,
		its layers are extracted, and the declarative config found under its configs
		directory is parsed. For every requested package the shortest sequence of bundles
		leading from the installed version to the head of the channel is then computed,
		honoring replaces, skips and skipRange.

		Pulled blobs and extracted catalogs are kept under <workspace>/working-dir and
		reused by later runs.

		The default podman credentials location ($XDG_RUNTIME_DIR/containers/auth.json) is
		used for authenticating to the registries, the docker location is also supported.
		`,
	)
	examples = templates.Examples(
		`
# Resolve the packages listed in the configuration
operator-upgradepath -c ./filter.yaml

# Keep the cache elsewhere and save the report
operator-upgradepath -c ./filter.yaml --workspace /var/cache/upgradepath --output-file report.yaml
		`,
	)
)

// GlobalOptions are the command line settings of a run.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	Workspace  string
	OutputFile string
	Registry   *registry.Options
}

type ExecutorSchema struct {
	Log             clog.PluggableLoggerInterface
	Opts            *GlobalOptions
	Config          v1alpha1.FilterConfiguration
	Fs              afero.Fs
	Layout          *workspace.Layout
	Auth            registry.AuthInterface
	Fetcher         registry.FetcherInterface
	Extractor       archive.ExtractorInterface
	Builder         catalog.BuilderInterface
	registryLogFile afero.File
}

// NewUpgradePathCmd - cobra entry point
func NewUpgradePathCmd(log clog.PluggableLoggerInterface) *cobra.Command {
	flagRegistryOpts, registryOpts := registry.Flags()
	flagRetryOpts := registry.RetryFlags(registryOpts)
	opts := &GlobalOptions{Registry: registryOpts}
	ex := &ExecutorSchema{
		Log:  log,
		Opts: opts,
		Fs:   afero.NewOsFs(),
	}

	cmd := &cobra.Command{
		Use:           appName + " -c <filter configuration path>",
		Short:         "Compute operator upgrade paths from file-based catalog images.",
		Long:          longDesc,
		Example:       examples,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !clog.ValidLevel(opts.LogLevel) {
				return fmt.Errorf("log-level has an invalid value %s , it should be one of (info,debug,trace, error)", opts.LogLevel)
			}
			log.Level(opts.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info(emoji.WavingHandSign + " Hello, welcome to " + appName)
			log.Info(emoji.Gear + "  setting up the environment for you...")
			if err := ex.Validate(); err != nil {
				return err
			}
			if err := ex.Complete(); err != nil {
				return err
			}
			defer ex.closeAll()
			return ex.Run(cmd.Context())
		},
	}
	cmd.AddCommand(version.NewVersionCommand(cmd.OutOrStdout()))

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level one of (info, debug, trace, error)")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the filter configuration file")
	cmd.Flags().StringVar(&opts.Workspace, "workspace", defaultRoot, "Directory holding the working-dir cache and logs")
	cmd.Flags().StringVar(&opts.OutputFile, "output-file", "", "Write the upgrade paths as YAML to this file")
	cmd.Flags().AddFlagSet(&flagRegistryOpts)
	cmd.Flags().AddFlagSet(&flagRetryOpts)
	// nolint: errcheck
	cmd.MarkFlagRequired("config")

	return cmd
}

// Validate - cobra validation
func (o *ExecutorSchema) Validate() error {
	if o.Opts.ConfigPath == "" {
		return errors.New("use the --config flag, it is mandatory")
	}
	if o.Opts.Registry.ParallelLayers == 0 {
		return errors.New("--parallel-layers must be greater than 0")
	}
	if o.Opts.Registry.RequestTimeout <= 0 {
		return errors.New("--request-timeout must be a positive duration")
	}
	if o.Opts.Registry.RetryTimes > 0 && o.Opts.Registry.RetryDelay <= 0 {
		return errors.New("--retry-delay must be a positive duration when --retry-times is set")
	}
	return nil
}

// Complete reads the configuration and wires the run's components.
func (o *ExecutorSchema) Complete() error {
	o.Log.Debug("filter configuration file %s", o.Opts.ConfigPath)
	cfg, err := config.ReadConfig(o.Fs, o.Opts.ConfigPath)
	if err != nil {
		return err
	}
	o.Log.Debug("filter configuration: %v", cfg)
	o.Config = cfg

	o.Layout = workspace.NewLayout(o.Fs, o.Opts.Workspace)
	trace, err := o.setupLogsDir()
	if err != nil {
		return err
	}

	o.Opts.Registry.IsTerminal = term.IsTerminal(int(os.Stdout.Fd()))
	client := registry.NewHTTPClient(*o.Opts.Registry, trace)
	o.Auth = registry.NewAuthClient(o.Log, client, *o.Opts.Registry)
	fetcher := registry.NewFetcher(o.Log, client, *o.Opts.Registry)
	fetcher.Fs = o.Fs
	o.Fetcher = registry.WithRetry(o.Log, fetcher, o.Opts.Registry.RetryTimes, o.Opts.Registry.RetryDelay)
	o.Extractor = archive.NewExtractor(o.Log, o.Fs)
	o.Builder = catalog.NewBuilder(o.Log)
	return nil
}

// Run processes every catalog, renders the report and returns a RunError
// when any catalog or operator failed.
func (o *ExecutorSchema) Run(ctx context.Context) error {
	report, err := o.ProcessCatalogs(ctx)
	if err != nil {
		return err
	}
	report.Log(o.Log)

	if o.Opts.OutputFile != "" {
		if err := report.WriteFile(o.Fs, o.Opts.OutputFile); err != nil {
			return err
		}
		o.Log.Info(emoji.Memo+" report written to %s", o.Opts.OutputFile)
	}

	o.Log.Info(emoji.WavingHandSign + " Goodbye, thank you for using " + appName)
	return report.RunError()
}

// setupLogsDir creates the logs directory and returns the logger tracing
// registry traffic into it.
func (o *ExecutorSchema) setupLogsDir() (*logrus.Logger, error) {
	logsDir := o.Layout.LogsDir()
	if err := o.Fs.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	f, err := o.Fs.OpenFile(filepath.Join(logsDir, consts.RegistryLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open registry log: %w", err)
	}
	o.registryLogFile = f

	trace := logrus.New()
	trace.SetOutput(f)
	trace.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	level := logrus.InfoLevel
	if o.Opts.LogLevel == "debug" || o.Opts.LogLevel == "trace" {
		level = logrus.DebugLevel
	}
	trace.SetLevel(level)
	return trace, nil
}

func (o *ExecutorSchema) closeAll() {
	// ignore errors here
	if o.registryLogFile != nil {
		_ = o.registryLogFile.Close()
	}
}
