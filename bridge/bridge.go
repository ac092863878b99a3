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

// Package bridge wires the session client, the channel readers and
// writers and the pubsub transport into one coherent lifecycle.
package bridge

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sishi44/locator-ros-bridge/channel"
	"github.com/sishi44/locator-ros-bridge/config"
	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/log"
	"github.com/sishi44/locator-ros-bridge/protocol"
	"github.com/sishi44/locator-ros-bridge/pubsub"
	"github.com/sishi44/locator-ros-bridge/session"
	"github.com/sishi44/locator-ros-bridge/tracer"
)

// Topics decoded records are published on, one per inbound channel,
// and the inward topics sensor data is consumed from.
const (
	TopicControlMode               = "locator/client_control_mode"
	TopicMap                       = "locator/client_map_map"
	TopicMapVisualization          = "locator/client_map_visualization"
	TopicRecordingMap              = "locator/client_recording_map"
	TopicRecordingVisualization    = "locator/client_recording_visualization"
	TopicLocalizationMap           = "locator/client_localization_map"
	TopicLocalizationVisualization = "locator/client_localization_visualization"
	TopicPose                      = "locator/client_localization_pose"
	TopicGlobalAlignVisualization  = "locator/client_global_align_visualization"

	TopicLaserScan  = "sensors/scan"
	TopicLaserScan2 = "sensors/scan2"
	TopicOdometry   = "sensors/odom"
)

// maxRefreshFailures is how many consecutive failed session refreshes
// the bridge tolerates before giving up. A single missed refresh is
// expected to be harmless.
const maxRefreshFailures = 3

// inbound describes one of the locator's always-on receiving channels.
type inbound struct {
	name  string
	port  int
	codec datagram.Codec
	topic string
}

func inboundChannels() []inbound {
	return []inbound{
		{protocol.ChannelControlMode, protocol.PortClientControlMode, datagram.ControlModeCodec{}, TopicControlMode},
		{protocol.ChannelMapMap, protocol.PortClientMapMap, datagram.MapCodec{Channel: protocol.ChannelMapMap}, TopicMap},
		{protocol.ChannelMapVisualization, protocol.PortClientMapVisualization, datagram.VisualizationCodec{Channel: protocol.ChannelMapVisualization}, TopicMapVisualization},
		{protocol.ChannelRecordingMap, protocol.PortClientRecordingMap, datagram.MapCodec{Channel: protocol.ChannelRecordingMap}, TopicRecordingMap},
		{protocol.ChannelRecordingVisualization, protocol.PortClientRecordingVisualization, datagram.VisualizationCodec{Channel: protocol.ChannelRecordingVisualization}, TopicRecordingVisualization},
		{protocol.ChannelLocalizationMap, protocol.PortClientLocalizationMap, datagram.MapCodec{Channel: protocol.ChannelLocalizationMap}, TopicLocalizationMap},
		{protocol.ChannelLocalizationVisualization, protocol.PortClientLocalizationVisualization, datagram.VisualizationCodec{Channel: protocol.ChannelLocalizationVisualization}, TopicLocalizationVisualization},
		{protocol.ChannelLocalizationPose, protocol.PortClientLocalizationPose, datagram.PoseCodec{}, TopicPose},
		{protocol.ChannelGlobalAlignVisualization, protocol.PortClientGlobalAlignVisualization, datagram.GlobalAlignCodec{}, TopicGlobalAlignVisualization},
	}
}

// Bridge is the orchestrator owning the lifecycle of the session
// client and of every channel reader and writer.
type Bridge struct {
	// PubSub carries decoded records outward and sensor data inward.
	PubSub *pubsub.PubSub

	cfg     *config.Bridge
	session *session.Client
	tracer  *tracer.Tracer

	state int32

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mutex          sync.Mutex
	readers        map[string]*channel.Reader
	writers        map[string]*channel.Writer
	conf           *config.Map
	features       config.Features
	lastRecording  string
	lastMapName    string
	prevLaserStamp map[string]float64
}

// New returns a bridge for the locator described by cfg. Run starts
// it.
func New(cfg *config.Bridge) *Bridge {
	return &Bridge{
		PubSub:         pubsub.New(),
		cfg:            cfg,
		session:        session.New(cfg.Host),
		tracer:         tracer.New(),
		stop:           make(chan struct{}),
		readers:        make(map[string]*channel.Reader),
		writers:        make(map[string]*channel.Writer),
		prevLaserStamp: make(map[string]float64),
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(atomic.LoadInt32(&b.state))
}

func (b *Bridge) setState(s State) {
	atomic.StoreInt32(&b.state, int32(s))
	log.Debug.Printf("bridge: state: %v", s)
}

func (b *Bridge) shuttingDown() bool {
	return b.State() >= StateShuttingDown
}

// Features returns the derived feature flags of the synchronized
// configuration snapshot.
func (b *Bridge) Features() config.Features {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.features
}

// Config returns the synchronized configuration snapshot, nil before
// ConfigSynced.
func (b *Bridge) Config() *config.Map {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.conf
}

// Run starts the bridge and blocks until it is stopped or ctx gets
// canceled. Startup is gated: an unauthenticated or incompatible
// locator aborts before any channel goes up.
func (b *Bridge) Run(ctx context.Context) error {
	if b.State() != StateCreated {
		return fmt.Errorf("bridge: already used, state %v", b.State())
	}

	if err := b.startup(ctx); err != nil {
		b.shutdown()
		return err
	}

	// trap exit signals
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)

	select {
	case sig := <-sigc:
		log.Printf("bridge: signal (%v) received: exiting...", sig)
	case <-ctx.Done():
	case <-b.stop:
	}

	b.shutdown()
	return nil
}

func (b *Bridge) startup(ctx context.Context) error {
	log.Printf("bridge: connecting to locator @ %v", b.cfg.Host)

	if err := b.session.Login(b.cfg.User, b.cfg.Password); err != nil {
		return fmt.Errorf("bridge: startup: %w", err)
	}
	b.setState(StateSessionEstablished)

	versions, err := b.session.ModuleVersions()
	if err != nil {
		return fmt.Errorf("bridge: startup: %w", err)
	}
	if err := session.CheckCompatibility(protocol.RequiredModuleVersions, versions); err != nil {
		return fmt.Errorf("bridge: locator software incompatible with this bridge: %w", err)
	}
	b.setState(StateVersionChecked)

	log.Printf("bridge: syncing config")
	syncer := config.NewSynchronizer(b.session)
	merged, keyErrs, err := syncer.Sync(b.cfg.Overrides)
	if err != nil {
		return fmt.Errorf("bridge: startup: %w", err)
	}
	for _, kerr := range keyErrs {
		log.Error.Printf("bridge: config override skipped: %v", kerr)
	}

	features := config.DeriveFeatures(merged)
	b.mutex.Lock()
	b.conf = merged
	b.features = features
	b.mutex.Unlock()
	b.setState(StateConfigSynced)

	if err := b.startWriters(features); err != nil {
		return err
	}

	for _, in := range inboundChannels() {
		if err := b.startReader(ctx, in.name); err != nil {
			return err
		}
	}

	if err := b.startTracer(); err != nil {
		return err
	}
	b.startRefresh()

	b.setState(StateChannelsActive)
	log.Printf("bridge: initialization done")

	return nil
}

// Close stops the bridge. Safe to call more than once and at any
// point of the lifecycle, including after a failed startup.
func (b *Bridge) Close() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})

	return nil
}

// shutdown tears down whatever subset of channels got created.
func (b *Bridge) shutdown() {
	if b.shuttingDown() {
		return
	}
	b.setState(StateShuttingDown)

	// no refresh may fire after this point
	b.Close()
	b.tracer.Close()

	b.mutex.Lock()
	readers := make([]*channel.Reader, 0, len(b.readers))
	for _, r := range b.readers {
		readers = append(readers, r)
	}
	writers := make([]*channel.Writer, 0, len(b.writers))
	for _, w := range b.writers {
		writers = append(writers, w)
	}
	b.mutex.Unlock()

	for _, r := range readers {
		r.Stop()
	}
	for _, w := range writers {
		w.Stop()
	}

	b.wg.Wait()

	if err := b.session.Logout(); err != nil {
		log.Error.Printf("bridge: logout: %v", err)
	}

	b.setState(StateStopped)
	log.Printf("bridge: stopped")
}

// startReader dials one inbound channel and spawns its worker.
func (b *Bridge) startReader(ctx context.Context, name string) error {
	var in inbound
	found := false
	for _, c := range inboundChannels() {
		if c.name == name {
			in = c
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("bridge: unknown inbound channel %v", name)
	}

	addr := fmt.Sprintf("%v:%d", b.cfg.Host, in.port)
	topic := in.topic
	r, err := channel.Dial(ctx, in.name, addr, in.codec, func(rec datagram.Record) {
		b.PubSub.Pub(rec, topic)
	})
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	b.mutex.Lock()
	b.readers[in.name] = r
	b.mutex.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		err := r.Run()
		if err == nil || b.shuttingDown() {
			return
		}

		// the channel is lost; hand it to the tracer, which will
		// report once the endpoint answers again
		log.Error.Printf("bridge: %v", err)
		b.tracer.Trace(tracer.Endpoint{
			Name:    in.name,
			Addr:    addr,
			Timeout: 2 * time.Second,
		})
	}()

	return nil
}

// startTracer brings up the reconnect monitor for lost inbound
// channels.
func (b *Bridge) startTracer() error {
	if _, err := b.tracer.Notify(func(i interface{}) {
		m, ok := i.(tracer.Message)
		if !ok || m.Err != nil || b.shuttingDown() {
			return
		}

		b.tracer.Untrace(m.ID)
		log.Printf("bridge: channel %v reachable again, reconnecting", m.ID)
		if err := b.startReader(context.Background(), m.ID); err != nil {
			log.Error.Printf("bridge: reconnect %v: %v", m.ID, err)
		}
	}); err != nil {
		return fmt.Errorf("bridge: %v", err)
	}

	return b.tracer.Run()
}

// startRefresh spawns the session refresh worker.
func (b *Bridge) startRefresh() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(session.RefreshPeriod)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				log.Printf("bridge: refreshing session!")
				if err := b.session.Refresh(); err != nil {
					failures++
					log.Error.Printf("bridge: session refresh: %v", err)
					if failures >= maxRefreshFailures {
						log.Error.Printf("bridge: %d consecutive refresh failures, giving up", failures)
						b.Close()
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()
}
