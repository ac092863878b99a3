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
	"math"

	"github.com/sishi44/locator-ros-bridge/channel"
	"github.com/sishi44/locator-ros-bridge/config"
	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/log"
	"github.com/sishi44/locator-ros-bridge/protocol"
)

// startWriters brings up the sending channels the synchronized
// configuration enables. The locator dials into them.
func (b *Bridge) startWriters(features config.Features) error {
	if features.Laser {
		if err := b.startLaserWriter(protocol.ChannelLaser, b.cfg.LaserPort, TopicLaserScan); err != nil {
			return err
		}
	}
	if features.Laser2 {
		if err := b.startLaserWriter(protocol.ChannelLaser2, b.cfg.Laser2Port, TopicLaserScan2); err != nil {
			return err
		}
	}
	if features.Odometry {
		if err := b.startOdometryWriter(); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bridge) startLaserWriter(name string, port int, topic string) error {
	w, err := channel.Listen(name, port)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	b.registerWriter(name, w)

	if _, err := b.PubSub.Sub(topic, func(i interface{}) {
		scan, ok := i.(*datagram.LaserScan)
		if !ok {
			log.Error.Printf("bridge: %v: unexpected message %T", name, i)
			return
		}
		b.sendLaser(w, name, scan)
	}); err != nil {
		return fmt.Errorf("bridge: %v", err)
	}

	return nil
}

func (b *Bridge) startOdometryWriter() error {
	w, err := channel.Listen(protocol.ChannelOdometry, b.cfg.OdomPort)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	b.registerWriter(protocol.ChannelOdometry, w)

	if _, err := b.PubSub.Sub(TopicOdometry, func(i interface{}) {
		odom, ok := i.(*datagram.Odometry)
		if !ok {
			log.Error.Printf("bridge: odometry: unexpected message %T", i)
			return
		}
		b.sendOdometry(w, odom)
	}); err != nil {
		return fmt.Errorf("bridge: %v", err)
	}

	return nil
}

func (b *Bridge) registerWriter(name string, w *channel.Writer) {
	b.mutex.Lock()
	b.writers[name] = w
	b.mutex.Unlock()

	log.Printf("bridge: channel %v listening on %v", name, w.Addr())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		if err := w.Run(); err != nil && !b.shuttingDown() {
			log.Error.Printf("bridge: %v", err)
		}
	}()
}

// sendLaser stamps and ships one laser frame. The sequence number
// advances even when the write fails, so the locator can spot gaps.
func (b *Bridge) sendLaser(w *channel.Writer, name string, scan *datagram.LaserScan) {
	b.fillScanTime(name, scan)
	scan.SetSeq(w.NextSeq())

	p, err := datagram.LaserCodec{Channel: name}.Encode(scan)
	if err != nil {
		log.Error.Printf("bridge: %v: %v", name, err)
		return
	}

	if w.Send(p) == channel.SendIOError {
		b.checkLaserScan(name, scan)
	}
}

// fillScanTime derives a missing scan time from the gap to the
// previous frame's timestamp, matching what drivers that never fill
// the field expect.
func (b *Bridge) fillScanTime(name string, scan *datagram.LaserScan) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	prev, ok := b.prevLaserStamp[name]
	if scan.ScanTime == 0 && ok && scan.Timestamp > prev {
		scan.ScanTime = float32(scan.Timestamp - prev)
	}
	b.prevLaserStamp[name] = scan.Timestamp
}

func (b *Bridge) sendOdometry(w *channel.Writer, odom *datagram.Odometry) {
	odom.SetSeq(w.NextSeq())

	p, err := datagram.OdometryCodec{}.Encode(odom)
	if err != nil {
		log.Error.Printf("bridge: odometry: %v", err)
		return
	}

	// a failed odometry write is not worth diagnosing, the next frame
	// supersedes it anyway
	w.Send(p)
}

// checkLaserScan runs the shape checks on a frame whose write failed.
// The locator drops connections on malformed scans, so an I/O error is
// the moment to tell a dead peer apart from bad sensor data.
func (b *Bridge) checkLaserScan(name string, scan *datagram.LaserScan) {
	useIntensities := false
	if c := b.Config(); c != nil {
		if e, ok := c.Get("ClientSensor." + name + ".useIntensities"); ok {
			v, isBool := e.Value.(bool)
			useIntensities = isBool && v
		}
	}

	if err := validLaserScan(scan, useIntensities); err != nil {
		log.Error.Printf("bridge: %v: invalid scan: %v", name, err)
	}
}

// validLaserScan checks that the declared angular sweep matches the
// beam count and that intensities, when required, align with ranges.
func validLaserScan(scan *datagram.LaserScan, useIntensities bool) error {
	n := len(scan.Ranges)
	if n == 0 {
		return fmt.Errorf("no range measurements")
	}

	want := float64(scan.AngleMin) + float64(n-1)*float64(scan.AngleIncrement)
	if math.Abs(want-float64(scan.AngleMax)) > math.Abs(float64(scan.AngleIncrement))/2 {
		return fmt.Errorf("angle sweep mismatch: %d beams from %v by %v do not end at %v",
			n, scan.AngleMin, scan.AngleIncrement, scan.AngleMax)
	}

	if useIntensities && len(scan.Intensities) != n {
		return fmt.Errorf("intensities required but %d intensities for %d ranges",
			len(scan.Intensities), n)
	}

	return nil
}
