package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   string
	BuildTime string
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "locator-bridge",
	Short: "locator-bridge connects a robot middleware to an industrial localization device",
	Long: `locator-bridge maintains an authenticated session with a localization
device, streams its binary channels into pubsub topics and feeds sensor
data back. An optional HTTP gateway exposes the device's control
operations`,
}

func Execute() {
	// parse flags
	startCmd.Flags().StringVarP(&configPath, "config", "c", "locator-bridge.toml", "bridge configuration file")

	// add commands
	rootCmd.AddCommand(versionCmd, startCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
