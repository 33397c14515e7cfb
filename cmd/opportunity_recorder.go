/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/arbitrage-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// opportunityRecorderCmd represents the opportunityRecorder command
var opportunityRecorderCmd = &cobra.Command{
	Use:   "opportunity-recorder",
	Short: "Journal opportunities published by market-data-gateway",
	Long: `Consumes opportunity events from the arbitrage JetStream stream and stores them in
postgres. Redelivered opportunities are ignored.`,
	Run: bootstrap.StartOpportunityRecorder,
}

func init() {
	rootCmd.AddCommand(opportunityRecorderCmd)
}
