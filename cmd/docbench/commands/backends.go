package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docbench/internal/config"
)

func newBackendsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the enabled backends in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ready := color.New(color.FgGreen)
			missing := color.New(color.FgYellow)
			for _, c := range []*color.Color{ready, missing} {
				if root.useColor(true) {
					c.EnableColor()
				} else {
					c.DisableColor()
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPROVIDER\tMODEL\tTIMEOUT\tCREDENTIALS")
			for _, b := range root.cfg.Backends.Ordered() {
				state := ready.Sprint("ok")
				if missingSetting := credentialGap(b); missingSetting != "" {
					state = missing.Sprint("missing " + missingSetting)
				}
				model := b.DefaultModel
				if b.ModelID != "" {
					model = b.ModelID
				}
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%ds\t%s\n", b.Name, b.Provider, model, b.TimeoutSecs, state)
			}
			return tw.Flush()
		},
	}
}

// credentialGap names the first setting a backend still needs, or "".
func credentialGap(b config.BackendConfig) string {
	switch b.Provider {
	case "http":
		if b.Endpoint == "" {
			return "endpoint"
		}
		return ""
	case "azure":
		if b.Endpoint == "" {
			return "endpoint"
		}
	}
	if b.APIKey == "" {
		return "api key"
	}
	return ""
}
