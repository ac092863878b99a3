package datagram

import "fmt"

// maxMapPoints bounds the declared point count of a map frame. A count
// beyond it cannot come from the locator and marks the frame corrupt
// rather than merely incomplete.
const maxMapPoints = 1 << 22

// Point is one 2D map point in meters.
type Point struct {
	X float64
	Y float64
}

// PointCloud is one map frame: the locator streams the same layout on
// the map, recording map and localization map channels.
type PointCloud struct {
	kind   string
	Points []Point
}

func (p PointCloud) Kind() string { return p.kind }

// MapCodec codes a point cloud frame: uint32 point count followed by
// an x/y float64 pair per point.
type MapCodec struct {
	Channel string
}

func (c MapCodec) Kind() string { return c.Channel }

func (c MapCodec) Decode(buf []byte) (Record, int, error) {
	r := &reader{buf: buf}

	n := r.u32()
	if r.err != nil {
		return nil, 0, r.err
	}
	if n > maxMapPoints {
		return nil, 0, fmt.Errorf("datagram: map: absurd point count %d", n)
	}

	points := make([]Point, n)
	for i := range points {
		points[i].X = r.f64()
		points[i].Y = r.f64()
	}
	if r.err != nil {
		return nil, 0, r.err
	}

	return PointCloud{kind: c.Channel, Points: points}, r.off, nil
}

func (c MapCodec) Encode(rec Record) ([]byte, error) {
	pc, ok := rec.(PointCloud)
	if !ok {
		return nil, fmt.Errorf("datagram: map: unexpected record %T", rec)
	}

	a := &appender{}
	a.u32(uint32(len(pc.Points)))
	for _, p := range pc.Points {
		a.f64(p.X)
		a.f64(p.Y)
	}

	return a.buf, nil
}

// NewPointCloud builds a point cloud record for channel. Used on the
// encoding side and in tests; decoded records are tagged by the codec.
func NewPointCloud(channel string, points []Point) PointCloud {
	return PointCloud{kind: channel, Points: points}
}
