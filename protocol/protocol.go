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

// Package protocol holds the constants of the locator's dual-channel
// protocol: the fixed binary channel ports, the session endpoint port
// and the module versions this bridge is known to be compatible with.
package protocol

import "fmt"

// Version is the bridge protocol version.
const Version = "1.0.0"

// SessionPort is the fixed port of the locator's JSON-RPC
// configuration and session endpoint.
const SessionPort = 8080

// Ports of the binary channels the locator streams data on. The
// locator listens on these, the bridge connects.
const (
	PortClientControlMode               = 9004
	PortClientMapMap                    = 9005
	PortClientMapVisualization          = 9006
	PortClientRecordingMap              = 9007
	PortClientRecordingVisualization    = 9008
	PortClientLocalizationMap           = 9009
	PortClientLocalizationVisualization = 9010
	PortClientLocalizationPose          = 9011
	PortClientGlobalAlignVisualization  = 9012
)

// Names of the binary channels, also used as frame kind identifiers.
const (
	ChannelControlMode               = "client_control_mode"
	ChannelMapMap                    = "client_map_map"
	ChannelMapVisualization          = "client_map_visualization"
	ChannelRecordingMap              = "client_recording_map"
	ChannelRecordingVisualization    = "client_recording_visualization"
	ChannelLocalizationMap           = "client_localization_map"
	ChannelLocalizationVisualization = "client_localization_visualization"
	ChannelLocalizationPose          = "client_localization_pose"
	ChannelGlobalAlignVisualization  = "client_global_align_visualization"

	ChannelLaser    = "laser"
	ChannelLaser2   = "laser2"
	ChannelOdometry = "odometry"
)

// ModuleVersion is one entry of the locator's module version table.
type ModuleVersion struct {
	Major int
	Minor int
}

func (v ModuleVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// RequiredModuleVersions is the locator software surface this bridge
// was written against. The major version has to match exactly, the
// minor version may be equal or bigger. Checked once at startup.
var RequiredModuleVersions = map[string]ModuleVersion{
	"AboutModules":       {5, 0},
	"Session":            {3, 1},
	"Licensing":          {6, 1},
	"Config":             {5, 0},
	"AboutBuild":         {3, 0},
	"Certificate":        {3, 0},
	"System":             {3, 1},
	"ClientControl":      {3, 1},
	"ClientRecording":    {4, 0},
	"ClientMap":          {4, 0},
	"ClientLocalization": {6, 0},
	"ClientGlobalAlign":  {4, 0},
	"ClientSensor":       {5, 1},
}
