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

package config

import (
	"fmt"
	"sort"

	"github.com/sishi44/locator-ros-bridge/log"
)

// Keys of the locator configuration the derived feature flags are
// computed from.
const (
	keyLaserType      = "ClientSensor.laser.type"
	keyLaser2Type     = "ClientSensor.laser2.type"
	keyEnableLaser2   = "ClientSensor.enableLaser2"
	keyEnableOdometry = "ClientSensor.enableOdometry"
)

// RPC is the subset of the session client the synchronizer needs.
type RPC interface {
	ConfigList() (*Map, error)
	SetConfigList(*Map) error
}

// Synchronizer reconciles locally supplied overrides with the
// locator's live configuration.
type Synchronizer struct {
	rpc RPC
}

// NewSynchronizer returns a synchronizer calling through rpc.
func NewSynchronizer(rpc RPC) *Synchronizer {
	return &Synchronizer{rpc: rpc}
}

// Sync fetches the locator's configuration, merges overrides in by key
// and writes the merged map back. Overrides are coerced to each
// target's declared type; an override that cannot be represented is
// reported in errs and skipped, without aborting the sync. Applying
// the same overrides twice yields the same map as applying them once.
func (s *Synchronizer) Sync(overrides map[string]interface{}) (*Map, []error, error) {
	m, err := s.rpc.ConfigList()
	if err != nil {
		return nil, nil, fmt.Errorf("config: sync: fetch: %v", err)
	}

	var errs []error
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target, ok := m.Get(key)
		if !ok {
			errs = append(errs, fmt.Errorf("config: key %v not present on the locator", key))
			continue
		}

		merged, err := Coerce(key, target, overrides[key])
		if err != nil {
			errs = append(errs, err)
			continue
		}

		m.Set(key, merged)
	}

	for _, key := range m.Keys() {
		log.Debug.Printf("config: - %v: %v", key, m.StringOf(key))
	}

	if err := s.rpc.SetConfigList(m); err != nil {
		return nil, errs, fmt.Errorf("config: sync: push: %v", err)
	}

	return m, errs, nil
}

// Features are the derived flags gating the optional outbound
// channels. Computed once, at startup, from the synchronized snapshot.
type Features struct {
	Laser    bool
	Laser2   bool
	Odometry bool
}

// DeriveFeatures computes the feature flags from a merged
// configuration map. The laser feed is provided iff its configured
// type is "simple"; laser2 additionally requires its enable flag; the
// odometry feed follows its enable flag alone.
func DeriveFeatures(m *Map) Features {
	f := Features{
		Laser:    m.StringOf(keyLaserType) == "simple",
		Laser2:   m.StringOf(keyEnableLaser2) == "true" && m.StringOf(keyLaser2Type) == "simple",
		Odometry: m.StringOf(keyEnableOdometry) == "true",
	}

	if f.Laser {
		log.Printf("config: %v is simple, will provide laser data", keyLaserType)
	} else {
		log.Printf("config: %v is %q, laser data will not be provided", keyLaserType, m.StringOf(keyLaserType))
	}
	if f.Laser2 {
		log.Printf("config: will provide laser2 data")
	}
	if f.Odometry {
		log.Printf("config: %v is true, will provide odometry data", keyEnableOdometry)
	}

	return f
}
