package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/vboard/internal/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List host serial ports a UART can be bridged to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
