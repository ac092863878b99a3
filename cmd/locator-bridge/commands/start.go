/*
Copyright (C) 2024 The locator-ros-bridge Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package commands

import (
	"context"
	"fmt"

	"github.com/sishi44/locator-ros-bridge/bridge"
	"github.com/sishi44/locator-ros-bridge/config"
	"github.com/sishi44/locator-ros-bridge/gateway"
	"github.com/sishi44/locator-ros-bridge/log"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start connects to the locator and runs the bridge.",
	Long: `start connects to the locator and runs the bridge.

	Example:
	bin/locator-bridge start -c bridge.toml
	2024/03/12 09:31:08.124001 bridge: connecting to locator @ 192.168.0.10
	`,
	Args: cobra.MaximumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		cfg, err := config.LoadFile(configPath)
		if err != nil {
			fmt.Println(err)
			return
		}

		b := bridge.New(cfg)

		if cfg.GatewayAddr != "" {
			g := gateway.New(b)
			go func() {
				if err := g.ListenAndServe(cfg.GatewayAddr); err != nil {
					log.Error.Printf("gateway: %v", err)
				}
			}()
		}

		if err := b.Run(context.Background()); err != nil {
			fmt.Println(err)
		}
	},
}
