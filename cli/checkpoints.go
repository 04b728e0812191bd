package cli

import (
	"github.com/spf13/cobra"
)

var checkpointsCmd = []cobra.Command{
	{
		Use:   "latest <owner>",
		Short: "Latest checkpoint",
		Long:  `Show the newest checkpoint recorded for an owner.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cp, err := fsdk.LatestCheckpoint(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if cp == nil {
				logSuccessCmd(*cmd, "No checkpoint recorded for "+args[0])

				return
			}
			logJSONCmd(*cmd, cp)
		},
	},
	{
		Use:   "list <owner> [offset] [limit]",
		Short: "List checkpoints",
		Long:  `List the checkpoints recorded for an owner, newest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 || len(args) > 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			offset, limit, err := pageArgs(args[1:])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			cps, err := fsdk.ListCheckpoints(args[0], offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cps)
		},
	},
	{
		Use:   "view <id>",
		Short: "View checkpoint",
		Long:  `View a checkpoint by id.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			cp, err := fsdk.ViewCheckpoint(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, cp)
		},
	},
}

func NewCheckpointsCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "checkpoints [latest|list|view]",
		Short: "Checkpoint ledger",
		Long:  `Browse the checkpoint ledger.`,
	}

	for i := range checkpointsCmd {
		cmd.AddCommand(&checkpointsCmd[i])
	}

	return &cmd
}
