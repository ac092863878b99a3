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

package bridge

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/config"
	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/log"
)

// Control operations against the locator. Each one is a single session
// call; the locator reports progress on the visualization channels.

// StartRecording makes the locator record sensor data under name. An
// empty name reuses the last recording started through this bridge.
func (b *Bridge) StartRecording(name string) error {
	if name == "" {
		b.mutex.Lock()
		name = b.lastRecording
		b.mutex.Unlock()
	}
	if name == "" {
		return fmt.Errorf("bridge: no recording name given and none recorded yet")
	}

	query := b.session.SessionQuery()
	query["recordingName"] = name
	if _, err := b.session.Call("clientRecordingStartVisualRecording", query); err != nil {
		return fmt.Errorf("bridge: start recording: %w", err)
	}

	b.mutex.Lock()
	b.lastRecording = name
	b.mutex.Unlock()

	log.Printf("bridge: recording %v started", name)
	return nil
}

// StopRecording stops the running recording.
func (b *Bridge) StopRecording() error {
	if _, err := b.session.Call("clientRecordingStopVisualRecording", b.session.SessionQuery()); err != nil {
		return fmt.Errorf("bridge: stop recording: %w", err)
	}

	return nil
}

// StartMap builds a map from a recording. Empty arguments fall back to
// the last recording name and to "map-from-" + recording.
func (b *Bridge) StartMap(recordingName, clientMapName string) error {
	if recordingName == "" {
		b.mutex.Lock()
		recordingName = b.lastRecording
		b.mutex.Unlock()
	}
	if recordingName == "" {
		return fmt.Errorf("bridge: no recording name given and none recorded yet")
	}
	if clientMapName == "" {
		clientMapName = "map-from-" + recordingName
	}

	query := b.session.SessionQuery()
	query["recordingName"] = recordingName
	query["clientMapName"] = clientMapName
	if _, err := b.session.Call("clientMapStart", query); err != nil {
		return fmt.Errorf("bridge: start map: %w", err)
	}

	b.mutex.Lock()
	b.lastMapName = clientMapName
	b.mutex.Unlock()

	log.Printf("bridge: mapping %v from recording %v started", clientMapName, recordingName)
	return nil
}

// StopMap stops the running map creation.
func (b *Bridge) StopMap() error {
	if _, err := b.session.Call("clientMapStop", b.session.SessionQuery()); err != nil {
		return fmt.Errorf("bridge: stop map: %w", err)
	}

	return nil
}

// SendMap transfers a finished map to the locator's localization side.
// An empty name reuses the last map built through this bridge.
func (b *Bridge) SendMap(name string) error {
	if name == "" {
		b.mutex.Lock()
		name = b.lastMapName
		b.mutex.Unlock()
	}
	if name == "" {
		return fmt.Errorf("bridge: no map name given and none created yet")
	}

	query := b.session.SessionQuery()
	query["clientMapName"] = name
	if _, err := b.session.Call("clientMapSend", query); err != nil {
		return fmt.Errorf("bridge: send map: %w", err)
	}

	return nil
}

// SetMap activates a map for localization by writing the active map
// name into the locator's configuration. An empty name reuses the last
// map built through this bridge.
func (b *Bridge) SetMap(name string) error {
	if name == "" {
		b.mutex.Lock()
		name = b.lastMapName
		b.mutex.Unlock()
	}
	if name == "" {
		return fmt.Errorf("bridge: no map name given and none created yet")
	}

	m := config.NewMap()
	m.Set("ClientLocalization.activeMapName", config.Entry{
		Type:  config.TypeString,
		Value: name,
	})
	if err := b.session.SetConfigList(m); err != nil {
		return fmt.Errorf("bridge: set map: %w", err)
	}

	log.Printf("bridge: active map set to %v", name)
	return nil
}

// ListMaps returns the names of the maps stored on the locator.
func (b *Bridge) ListMaps() ([]string, error) {
	result, err := b.session.Call("clientMapList", b.session.SessionQuery())
	if err != nil {
		return nil, fmt.Errorf("bridge: list maps: %w", err)
	}

	raw, ok := result["clientMapNames"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("bridge: list maps: malformed response")
	}

	names := make([]string, 0, len(raw))
	for _, x := range raw {
		if name, ok := x.(string); ok {
			names = append(names, name)
		}
	}

	return names, nil
}

// StartLocalization starts localizing against the active map.
func (b *Bridge) StartLocalization() error {
	if _, err := b.session.Call("clientLocalizationStart", b.session.SessionQuery()); err != nil {
		return fmt.Errorf("bridge: start localization: %w", err)
	}

	return nil
}

// StopLocalization stops the running localization.
func (b *Bridge) StopLocalization() error {
	if _, err := b.session.Call("clientLocalizationStop", b.session.SessionQuery()); err != nil {
		return fmt.Errorf("bridge: stop localization: %w", err)
	}

	return nil
}

// SetSeed hands the locator an initial pose estimate. With enforce set
// the locator discards its own hypothesis and adopts the seed.
func (b *Bridge) SetSeed(pose datagram.Pose2D, enforce bool) error {
	query := b.session.SessionQuery()
	query["enforceSeed"] = enforce
	query["seedPose"] = map[string]interface{}{
		"x": pose.X,
		"y": pose.Y,
		"a": pose.Yaw,
	}
	if _, err := b.session.Call("clientLocalizationSetSeed", query); err != nil {
		return fmt.Errorf("bridge: set seed: %w", err)
	}

	return nil
}

// ConfigEntry returns the formatted value of one key from the
// locator's live configuration, bypassing the startup snapshot.
func (b *Bridge) ConfigEntry(key string) (string, error) {
	m, err := b.session.ConfigList()
	if err != nil {
		return "", fmt.Errorf("bridge: config entry: %w", err)
	}

	e, ok := m.Get(key)
	if !ok {
		return "", fmt.Errorf("bridge: config entry: unknown key %v", key)
	}

	return e.String(), nil
}
