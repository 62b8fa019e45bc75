// Package cmd implements the simulate command-line demonstrator: it wires
// an in-process join/network server and the real session engine together
// so an OTAA join and a few uplinks can be exercised end to end without any
// physical radio.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a Class-A LoRaWAN session against an in-process network server",
	Long: `simulate drives the classa session engine against a loopback
join server and network server, so its OTAA handshake and uplink/downlink
framing can be inspected without a radio.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to device profile YAML (default ./device.yaml)")
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(sendCmd)
}

// Execute runs the simulate command tree.
func Execute() error {
	return rootCmd.Execute()
}
