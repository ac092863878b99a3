package datagram

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/protocol"
)

// Localization states as reported in LocalizationPose.State.
const (
	LocStateBootup = iota
	LocStateAwaitRetry
	LocStateMoving
	LocStateLocalized
)

// Pose2D is a planar pose.
type Pose2D struct {
	X   float64
	Y   float64
	Yaw float64
}

// LocalizationPose is one frame of the localization pose channel.
type LocalizationPose struct {
	Timestamp  float64
	UniqueID   int64
	State      int32
	ErrorFlags uint32
	InfoFlags  uint32
	Pose       Pose2D
	// Covariance holds the upper triangle of the 3x3 pose covariance.
	Covariance [6]float64
	LidarOdo   Pose2D
}

func (LocalizationPose) Kind() string { return protocol.ChannelLocalizationPose }

// PoseCodec codes the fixed-size localization pose frame.
type PoseCodec struct{}

func (PoseCodec) Kind() string { return protocol.ChannelLocalizationPose }

func (PoseCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	p := &LocalizationPose{}
	p.Timestamp = r.f64()
	p.UniqueID = r.i64()
	p.State = r.i32()
	p.ErrorFlags = r.u32()
	p.InfoFlags = r.u32()
	p.Pose.X = r.f64()
	p.Pose.Y = r.f64()
	p.Pose.Yaw = r.f64()
	for i := range p.Covariance {
		p.Covariance[i] = r.f64()
	}
	p.LidarOdo.X = r.f64()
	p.LidarOdo.Y = r.f64()
	p.LidarOdo.Yaw = r.f64()

	if r.err != nil {
		return nil, 0, r.err
	}

	return p, r.off, nil
}

func (PoseCodec) Encode(rec Record) ([]byte, error) {
	p, ok := rec.(*LocalizationPose)
	if !ok {
		return nil, fmt.Errorf("datagram: pose: unexpected record %T", rec)
	}

	a := &appender{}
	a.f64(p.Timestamp)
	a.i64(p.UniqueID)
	a.i32(p.State)
	a.u32(p.ErrorFlags)
	a.u32(p.InfoFlags)
	a.f64(p.Pose.X)
	a.f64(p.Pose.Y)
	a.f64(p.Pose.Yaw)
	for _, c := range p.Covariance {
		a.f64(c)
	}
	a.f64(p.LidarOdo.X)
	a.f64(p.LidarOdo.Y)
	a.f64(p.LidarOdo.Yaw)

	return a.buf, nil
}
