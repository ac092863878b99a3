package datagram

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/protocol"
)

// maxLaserBeams bounds the declared beam count of a laser frame.
const maxLaserBeams = 1 << 16

// LaserScan is one outbound laser frame, handed to the locator on the
// laser and laser2 sending channels.
type LaserScan struct {
	channel string

	// Seq is the per-channel sequence number, stamped by the sender.
	Seq            uint32
	Timestamp      float64
	ScanTime       float32
	AngleMin       float32
	AngleMax       float32
	AngleIncrement float32
	RangeMin       float32
	RangeMax       float32
	Ranges         []float32
	Intensities    []float32
}

func (s LaserScan) Kind() string { return s.channel }

// SetSeq stamps the per-channel sequence number.
func (s *LaserScan) SetSeq(seq uint32) { s.Seq = seq }

// NewLaserScan builds a laser scan record for channel (laser or
// laser2).
func NewLaserScan(channel string, s LaserScan) *LaserScan {
	s.channel = channel
	return &s
}

// LaserCodec codes a laser scan frame.
type LaserCodec struct {
	Channel string
}

func (c LaserCodec) Kind() string { return c.Channel }

func (c LaserCodec) Encode(rec Record) ([]byte, error) {
	s, ok := rec.(*LaserScan)
	if !ok {
		return nil, fmt.Errorf("datagram: laser: unexpected record %T", rec)
	}

	a := &appender{}
	a.u32(s.Seq)
	a.f64(s.Timestamp)
	a.f32(s.ScanTime)
	a.f32(s.AngleMin)
	a.f32(s.AngleMax)
	a.f32(s.AngleIncrement)
	a.f32(s.RangeMin)
	a.f32(s.RangeMax)
	a.u32(uint32(len(s.Ranges)))
	for _, v := range s.Ranges {
		a.f32(v)
	}
	a.u32(uint32(len(s.Intensities)))
	for _, v := range s.Intensities {
		a.f32(v)
	}

	return a.buf, nil
}

func (c LaserCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	s := &LaserScan{channel: c.Channel}
	s.Seq = r.u32()
	s.Timestamp = r.f64()
	s.ScanTime = r.f32()
	s.AngleMin = r.f32()
	s.AngleMax = r.f32()
	s.AngleIncrement = r.f32()
	s.RangeMin = r.f32()
	s.RangeMax = r.f32()

	readF32s := func(what string) []float32 {
		n := r.u32()
		if r.err != nil {
			return nil
		}
		if n > maxLaserBeams {
			r.err = fmt.Errorf("datagram: laser: absurd %s count %d", what, n)
			return nil
		}

		vs := make([]float32, n)
		for i := range vs {
			vs[i] = r.f32()
		}
		return vs
	}

	s.Ranges = readF32s("range")
	s.Intensities = readF32s("intensity")

	if r.err != nil {
		return nil, 0, r.err
	}

	return s, r.off, nil
}

// Odometry is one outbound odometry frame.
type Odometry struct {
	// Seq is the per-channel sequence number, stamped by the sender.
	Seq       uint32
	Timestamp float64
	Pose      Pose2D
	// Velocities in the robot frame.
	VX    float64
	VY    float64
	Omega float64
	// VelocitySet marks the velocity fields as valid.
	VelocitySet bool
}

func (Odometry) Kind() string { return protocol.ChannelOdometry }

// SetSeq stamps the per-channel sequence number.
func (o *Odometry) SetSeq(seq uint32) { o.Seq = seq }

// OdometryCodec codes the fixed-size odometry frame.
type OdometryCodec struct{}

func (OdometryCodec) Kind() string { return protocol.ChannelOdometry }

func (OdometryCodec) Encode(rec Record) ([]byte, error) {
	o, ok := rec.(*Odometry)
	if !ok {
		return nil, fmt.Errorf("datagram: odometry: unexpected record %T", rec)
	}

	a := &appender{}
	a.u32(o.Seq)
	a.f64(o.Timestamp)
	a.f64(o.Pose.X)
	a.f64(o.Pose.Y)
	a.f64(o.Pose.Yaw)
	a.f64(o.VX)
	a.f64(o.VY)
	a.f64(o.Omega)
	if o.VelocitySet {
		a.u8(1)
	} else {
		a.u8(0)
	}

	return a.buf, nil
}

func (OdometryCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	o := &Odometry{}
	o.Seq = r.u32()
	o.Timestamp = r.f64()
	o.Pose.X = r.f64()
	o.Pose.Y = r.f64()
	o.Pose.Yaw = r.f64()
	o.VX = r.f64()
	o.VY = r.f64()
	o.Omega = r.f64()
	o.VelocitySet = r.u8() != 0

	if r.err != nil {
		return nil, 0, r.err
	}

	return o, r.off, nil
}
