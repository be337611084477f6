package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the configured database and report it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, m, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll(h, m)

			if err := h.DB().PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("ping %s: %w", h.Key(), err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", h.Key(), h.DB().Dialect().Name())
			return err
		},
	}
}
