package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"planrelay/pkg/plan"
)

type renderFlags struct {
	age       string
	sessions  string
	objective string
}

// newRenderCmd prints the prompt that would be sent upstream, without calling it.
func newRenderCmd(opts *options) *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the rendered prompt for a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			prompt, err := loadPrompt(cfg)
			if err != nil {
				return err
			}

			req := plan.PlanRequest{
				Age:       parseFlagParam(flags.age),
				Sessions:  parseFlagParam(flags.sessions),
				Objective: parseFlagParam(flags.objective),
			}
			if err := req.Validate(); err != nil {
				return err //nolint:wrapcheck // message names the missing flags
			}

			text, err := prompt.Render(&req)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err //nolint:wrapcheck // stdout write
		},
	}

	flags.bind(cmd.Flags())
	return cmd
}

func (f *renderFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.age, "age", "", "student age")
	fs.StringVar(&f.sessions, "sessions", "", "number of sessions")
	fs.StringVar(&f.objective, "objective", "", "learning objective")
}

// parseFlagParam treats a flag value as JSON when it parses as a number, otherwise as a string.
func parseFlagParam(value string) plan.Param {
	var n json.Number
	if err := json.Unmarshal([]byte(value), &n); err == nil {
		var p plan.Param
		_ = p.UnmarshalJSON([]byte(n.String()))
		return p
	}
	return plan.NewParam(value)
}
