/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"time"

	"github.com/krobus00/arbitrage-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// streamSetupCmd represents the streamSetup command
var streamSetupCmd = &cobra.Command{
	Use:   "stream-setup",
	Short: "Create or update the arbitrage JetStream stream",
	Long:  `Create or update the arbitrage JetStream stream`,
	Run:   bootstrap.StartStreamSetup,
}

func init() {
	rootCmd.AddCommand(streamSetupCmd)
	streamSetupCmd.PersistentFlags().Duration("timeout", 10*time.Second, "timeout for stream setup")
}
