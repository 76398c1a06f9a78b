package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [CONFIG_PATH...]",
		Short: "Execute the plugin pipeline.",
		Example: `  # Run two exporters with at most four plugins at once
  ttrpgconv run -s foundry_export,roll20_export --max-parallel 4`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			report, err := a.Run(cmd.Context())
			if report != nil {
				if rerr := renderReport(cmd.OutOrStdout(), report); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}
	opts.addPipelineFlags(cmd.Flags())
	return cmd
}

func newPlanCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "plan [CONFIG_PATH...]",
		Short:             "Print the execution batches without running anything.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			batches, err := a.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), batches)
		},
	}
	opts.addPipelineFlags(cmd.Flags())
	return cmd
}

func newPluginsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "plugins",
		Short:             "Inspect the plugin catalogue.",
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
	}

	var format string
	list := &cobra.Command{
		Use:               "list",
		Short:             "List every known plugin.",
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			render, ok := pluginRenderers[format]
			if !ok {
				return usageError(fmt.Errorf("invalid output format %q: must be 'table', 'json' or 'yaml'", format))
			}
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			return render(cmd.OutOrStdout(), a.Plugins(cmd.Context()))
		},
	}
	list.Flags().StringVarP(&format, FlagOutput, "o", "table", "output format: 'table', 'json' or 'yaml'")

	discover := &cobra.Command{
		Use:               "discover",
		Short:             "Scan the search paths for plugins and report every problem.",
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := opts.newApp(cmd, args)
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a, &err)

			n, err := a.Discover(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Discovered %d plugins.\n", n)
			if err != nil {
				return &ExitError{Code: 1, Message: fmt.Sprintf("discovery reported problems:\n%v", err)}
			}
			return nil
		},
	}

	cmd.AddCommand(list, discover)
	return cmd
}
