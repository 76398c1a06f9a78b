package cli

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/specialistvlad/ttrpgconv/internal/app"
	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/hcl"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	FlagConfig          = "config"
	FlagPluginPath      = "plugin-path"
	FlagLogFormat       = "log-format"
	FlagLogLevel        = "log-level"
	FlagHealthcheckPort = "healthcheck-port"
	FlagMaxParallel     = "max-parallel"
	FlagContinueOnError = "continue-on-error"
	FlagSelect          = "select"
	FlagOutput          = "output"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// options holds the values bound to flags.
type options struct {
	configPaths     []string
	pluginPaths     []string
	logFormat       string
	logLevel        string
	healthcheckPort int

	maxParallel     int
	continueOnError bool
	selected        []string
}

// New builds the root command. Command output and logs are written to outW.
func New(outW io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ttrpgconv",
		Short: "Convert tabletop RPG campaigns through a pipeline of plugins.",
		Long: `ttrpgconv loads campaign data through input plugins, validates it and
hands it to export plugins. Plugins and the pipeline are declared in HCL
configuration files; more plugins are discovered from HCL and YAML manifests.`,
		Example: `  # Run the pipeline declared in ./ttrpgconv.hcl
  ttrpgconv run

  # Show what a run of the foundry exporter would execute
  ttrpgconv plan -c campaign.hcl --select foundry_export`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.configPaths, FlagConfig, "c", []string{"ttrpgconv.hcl"}, "configuration files or directories")
	flags.StringSliceVar(&opts.pluginPaths, FlagPluginPath, nil, "additional directories searched for plugin manifests")
	flags.StringVar(&opts.logFormat, FlagLogFormat, "text", "log output format: 'text' or 'json'")
	flags.StringVar(&opts.logLevel, FlagLogLevel, "info", "logging level: 'debug', 'info', 'warn' or 'error'")
	flags.IntVar(&opts.healthcheckPort, FlagHealthcheckPort, 0, "port for the HTTP health check server, 0 disables it")

	root.AddCommand(
		newRunCommand(opts),
		newPlanCommand(opts),
		newPluginsCommand(opts),
	)
	return root
}

// Execute runs the command tree with the given arguments.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	cmd := New(outW)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// addPipelineFlags binds the flags that override the pipeline block.
func (o *options) addPipelineFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.maxParallel, FlagMaxParallel, 0, "maximum number of plugins executed at once")
	fs.BoolVar(&o.continueOnError, FlagContinueOnError, false, "keep running independent plugins after a failure")
	fs.StringSliceVarP(&o.selected, FlagSelect, "s", nil, "run only these plugins and their dependencies")
}

// override applies the pipeline flags the user actually set.
func (o *options) override(fs *pflag.FlagSet) func(*config.Model) {
	return func(m *config.Model) {
		if fs.Changed(FlagMaxParallel) {
			m.Pipeline.MaxParallel = o.maxParallel
		}
		if fs.Changed(FlagContinueOnError) {
			m.Pipeline.ContinueOnError = o.continueOnError
		}
		if fs.Changed(FlagSelect) {
			m.Pipeline.Select = o.selected
		}
	}
}

// newApp builds the application from the flags. Positional arguments are
// extra configuration paths.
func (o *options) newApp(cmd *cobra.Command, args []string) (*app.App, error) {
	if cmd.Flags().Changed(FlagMaxParallel) && o.maxParallel < 1 {
		return nil, usageError(errors.New("invalid max-parallel: must be at least 1"))
	}
	cfg, err := app.NewConfig(app.Config{
		ConfigPaths:     append(slices.Clone(o.configPaths), args...),
		PluginPaths:     o.pluginPaths,
		LogFormat:       o.logFormat,
		LogLevel:        o.logLevel,
		HealthcheckPort: o.healthcheckPort,
		Override:        o.override(cmd.Flags()),
	})
	if err != nil {
		return nil, usageError(err)
	}
	return app.NewApp(cmd.OutOrStdout(), cfg, hcl.NewLoader())
}

// closeApp shuts the application down even when ctx is already cancelled.
func closeApp(ctx context.Context, a *app.App, err *error) {
	if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}
