package datagram

import (
	"fmt"

	"github.com/sishi44/locator-ros-bridge/protocol"
)

// maxVisPoses bounds the declared pose counts of visualization frames.
const maxVisPoses = 1 << 20

// Visualization is one frame of the map, recording or localization
// visualization channels. The three channels share the wire layout and
// differ only in which fields the locator actually fills in.
type Visualization struct {
	kind      string
	Timestamp float64
	UniqueID  int64
	Status    int32
	Pose      Pose2D
	// Distance driven since the last loop closure, in meters.
	DistanceToLastLC float64
	Delay            float64
	Progress         float64
	PathPoses        []Pose2D
	Scan             []Point
}

func (v Visualization) Kind() string { return v.kind }

// VisualizationCodec codes a visualization frame.
type VisualizationCodec struct {
	Channel string
}

func (c VisualizationCodec) Kind() string { return c.Channel }

func (c VisualizationCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	v := Visualization{kind: c.Channel}
	v.Timestamp = r.f64()
	v.UniqueID = r.i64()
	v.Status = r.i32()
	v.Pose.X = r.f64()
	v.Pose.Y = r.f64()
	v.Pose.Yaw = r.f64()
	v.DistanceToLastLC = r.f64()
	v.Delay = r.f64()
	v.Progress = r.f64()

	np := r.u32()
	if r.err == nil && np > maxVisPoses {
		return nil, 0, fmt.Errorf("datagram: visualization: absurd path pose count %d", np)
	}
	if r.err == nil {
		v.PathPoses = make([]Pose2D, np)
		for i := range v.PathPoses {
			v.PathPoses[i].X = r.f64()
			v.PathPoses[i].Y = r.f64()
			v.PathPoses[i].Yaw = r.f64()
		}
	}

	ns := r.u32()
	if r.err == nil && ns > maxMapPoints {
		return nil, 0, fmt.Errorf("datagram: visualization: absurd scan point count %d", ns)
	}
	if r.err == nil {
		v.Scan = make([]Point, ns)
		for i := range v.Scan {
			v.Scan[i].X = r.f64()
			v.Scan[i].Y = r.f64()
		}
	}

	if r.err != nil {
		return nil, 0, r.err
	}

	return v, r.off, nil
}

func (c VisualizationCodec) Encode(rec Record) ([]byte, error) {
	v, ok := rec.(Visualization)
	if !ok {
		return nil, fmt.Errorf("datagram: visualization: unexpected record %T", rec)
	}

	a := &appender{}
	a.f64(v.Timestamp)
	a.i64(v.UniqueID)
	a.i32(v.Status)
	a.f64(v.Pose.X)
	a.f64(v.Pose.Y)
	a.f64(v.Pose.Yaw)
	a.f64(v.DistanceToLastLC)
	a.f64(v.Delay)
	a.f64(v.Progress)
	a.u32(uint32(len(v.PathPoses)))
	for _, p := range v.PathPoses {
		a.f64(p.X)
		a.f64(p.Y)
		a.f64(p.Yaw)
	}
	a.u32(uint32(len(v.Scan)))
	for _, p := range v.Scan {
		a.f64(p.X)
		a.f64(p.Y)
	}

	return a.buf, nil
}

// NewVisualization builds a visualization record for channel.
func NewVisualization(channel string, v Visualization) Visualization {
	v.kind = channel
	return v
}

// GlobalAlignVisualization is one frame of the global alignment
// visualization channel.
type GlobalAlignVisualization struct {
	Timestamp float64
	UniqueID  int64
	Poses     []Pose2D
	Landmarks []Pose2D
}

func (GlobalAlignVisualization) Kind() string {
	return protocol.ChannelGlobalAlignVisualization
}

// GlobalAlignCodec codes the global alignment visualization frame.
type GlobalAlignCodec struct{}

func (GlobalAlignCodec) Kind() string { return protocol.ChannelGlobalAlignVisualization }

func (GlobalAlignCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	var v GlobalAlignVisualization
	v.Timestamp = r.f64()
	v.UniqueID = r.i64()

	readPoses := func() []Pose2D {
		n := r.u32()
		if r.err != nil {
			return nil
		}
		if n > maxVisPoses {
			r.err = fmt.Errorf("datagram: global align: absurd pose count %d", n)
			return nil
		}

		poses := make([]Pose2D, n)
		for i := range poses {
			poses[i].X = r.f64()
			poses[i].Y = r.f64()
			poses[i].Yaw = r.f64()
		}
		return poses
	}

	v.Poses = readPoses()
	v.Landmarks = readPoses()

	if r.err != nil {
		return nil, 0, r.err
	}

	return v, r.off, nil
}

func (GlobalAlignCodec) Encode(rec Record) ([]byte, error) {
	v, ok := rec.(GlobalAlignVisualization)
	if !ok {
		return nil, fmt.Errorf("datagram: global align: unexpected record %T", rec)
	}

	a := &appender{}
	a.f64(v.Timestamp)
	a.i64(v.UniqueID)
	for _, poses := range [][]Pose2D{v.Poses, v.Landmarks} {
		a.u32(uint32(len(poses)))
		for _, p := range poses {
			a.f64(p.X)
			a.f64(p.Y)
			a.f64(p.Yaw)
		}
	}

	return a.buf, nil
}
