package cli

import (
	"fmt"
	"strconv"

	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

var coordinatorCmd = []cobra.Command{
	{
		Use:   "status",
		Short: "Run status",
		Long:  `Show the coordinator's current run state, session and round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			s, err := fsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, s)
		},
	},
	{
		Use:   "history",
		Short: "Run history",
		Long:  `Show the distributed losses and metrics recorded for the current or last run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			h, err := fsdk.History()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.Summary)
		},
	},
	{
		Use:   "clients [offset] [limit]",
		Short: "List clients",
		Long:  `List the clients registered with the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			offset, limit, err := pageArgs(args)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			page, err := fsdk.ListClients(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	},
	{
		Use:   "remove <client_id>",
		Short: "Remove client",
		Long:  `Evict a client from the coordinator's registry.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := fsdk.RemoveClient(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	},
}

func NewCoordinatorCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "coordinator [status|history|clients|remove]",
		Short: "Coordinator inspection",
		Long:  `Inspect the federated learning coordinator.`,
	}

	for i := range coordinatorCmd {
		cmd.AddCommand(&coordinatorCmd[i])
	}

	return &cmd
}

func pageArgs(args []string) (uint64, uint64, error) {
	offset, limit := defOffset, defLimit

	var err error
	if len(args) > 0 {
		if offset, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid offset %q: %w", args[0], err)
		}
	}
	if len(args) > 1 {
		if limit, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid limit %q: %w", args[1], err)
		}
	}

	return offset, limit, nil
}
