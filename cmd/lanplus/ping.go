package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newPingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Establish a session and print the BMC device ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			id, err := s.GetDeviceID(ctx)
			if err != nil {
				return err
			}
			snap := s.Snapshot()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session  0x%08x/0x%08x suite [%s] privilege %s\n",
				snap.ConsoleID, snap.BMCID, snap.Suite, snap.Privilege)
			fmt.Fprintf(out, "guid     %s\n", snap.BMCGUID)
			fmt.Fprintf(out, "device   %s\n", id)
			return nil
		},
	}
}
