package main

import (
	"log"
	"time"

	"github.com/absmach/fedledger/cli"
	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	coordinatorURL  = "http://localhost:7070"
	ledgerURL       = "http://localhost:9020"
	contract        = "GlobalLearningContract"
	tlsVerification = false
	timeout         = 30 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fedledger-cli",
		Short: "Fedledger CLI",
		Long:  `Fedledger CLI inspects the federated learning coordinator and its checkpoint ledger.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				CoordinatorURL:  coordinatorURL,
				LedgerURL:       ledgerURL,
				Contract:        contract,
				TLSVerification: tlsVerification,
				Timeout:         timeout,
			})
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "c", coordinatorURL, "Coordinator URL")
	rootCmd.PersistentFlags().StringVarP(&ledgerURL, "ledger-url", "l", ledgerURL, "Ledger gateway URL")
	rootCmd.PersistentFlags().StringVar(&contract, "contract", contract, "Ledger contract name")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", tlsVerification, "Verify TLS certificates")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Request timeout")

	rootCmd.AddCommand(cli.NewCoordinatorCmd())
	rootCmd.AddCommand(cli.NewCheckpointsCmd())
	rootCmd.AddCommand(cli.NewHashCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
