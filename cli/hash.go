package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/spf13/cobra"
)

var errHashMismatch = errors.New("content hash mismatch")

var expectedHash string

func NewHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Content hash",
		Long: `Print the content hash a checkpoint payload is addressed by.

Examples:
  # Hash a downloaded model
  fedledger-cli hash model.cbor

  # Check a payload against its ledger record
  fedledger-cli hash model.cbor --verify 9f86d081884c7d65...`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			hash := ledger.ComputeContentHash(data)
			if expectedHash != "" && expectedHash != hash {
				logErrorCmd(*cmd, fmt.Errorf("%w: expected %s, got %s", errHashMismatch, expectedHash, hash))

				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
		},
	}

	cmd.Flags().StringVar(&expectedHash, "verify", "", "expected content hash")

	return cmd
}
