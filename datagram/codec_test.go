package datagram_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/protocol"
)

func poseFixture() *datagram.LocalizationPose {
	return &datagram.LocalizationPose{
		Timestamp:  1621324.5,
		UniqueID:   42,
		State:      datagram.LocStateLocalized,
		ErrorFlags: 0,
		InfoFlags:  3,
		Pose:       datagram.Pose2D{X: 1.5, Y: -0.25, Yaw: 0.7853},
		Covariance: [6]float64{0.1, 0, 0.1, 0, 0, 0.05},
		LidarOdo:   datagram.Pose2D{X: 10.2, Y: 4.4, Yaw: -1.2},
	}
}

func TestPoseRoundTrip(t *testing.T) {
	c := datagram.PoseCodec{}
	want := poseFixture()

	buf, err := c.Encode(want)
	if err != nil {
		t.Fatal(err)
	}

	rec, n, err := c.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %v bytes, wanted %v", n, len(buf))
	}

	got, ok := rec.(*datagram.LocalizationPose)
	if !ok {
		t.Fatalf("unexpected record type %T", rec)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("wanted %+v, found %+v", want, got)
	}
}

// Feeding any strict prefix of a frame must report a truncated frame
// without consuming bytes, for every codec.
func TestDecodeTruncated(t *testing.T) {
	codecs := []datagram.Codec{
		datagram.ControlModeCodec{},
		datagram.PoseCodec{},
		datagram.MapCodec{Channel: protocol.ChannelMapMap},
		datagram.VisualizationCodec{Channel: protocol.ChannelMapVisualization},
		datagram.GlobalAlignCodec{},
		datagram.LaserCodec{Channel: protocol.ChannelLaser},
		datagram.OdometryCodec{},
	}
	frames := [][]byte{
		mustEncode(t, codecs[0], datagram.ControlMode{Mask: 0x5}),
		mustEncode(t, codecs[1], poseFixture()),
		mustEncode(t, codecs[2], datagram.NewPointCloud(protocol.ChannelMapMap, []datagram.Point{{X: 1, Y: 2}, {X: 3, Y: 4}})),
		mustEncode(t, codecs[3], datagram.NewVisualization(protocol.ChannelMapVisualization, datagram.Visualization{
			Timestamp: 7,
			UniqueID:  1,
			PathPoses: []datagram.Pose2D{{X: 1}},
			Scan:      []datagram.Point{{Y: 2}},
		})),
		mustEncode(t, codecs[4], datagram.GlobalAlignVisualization{
			Timestamp: 2,
			Poses:     []datagram.Pose2D{{X: 1, Y: 2, Yaw: 3}},
			Landmarks: []datagram.Pose2D{{X: 4}},
		}),
		mustEncode(t, codecs[5], datagram.NewLaserScan(protocol.ChannelLaser, datagram.LaserScan{
			Seq:    1,
			Ranges: []float32{1, 2, 3},
		})),
		mustEncode(t, codecs[6], &datagram.Odometry{Seq: 9, VelocitySet: true}),
	}

	for i, c := range codecs {
		frame := frames[i]
		for cut := 0; cut < len(frame); cut++ {
			rec, n, err := c.Decode(frame[:cut])
			if !errors.Is(err, datagram.ErrTruncated) {
				t.Fatalf("%v: cut at %v: wanted ErrTruncated, found %v", c.Kind(), cut, err)
			}
			if n != 0 {
				t.Fatalf("%v: cut at %v: consumed %v bytes from a truncated frame", c.Kind(), cut, n)
			}
			if rec != nil {
				t.Fatalf("%v: cut at %v: emitted a record from a truncated frame", c.Kind(), cut)
			}
		}

		// the whole frame must decode in full
		_, n, err := c.Decode(frame)
		if err != nil {
			t.Fatalf("%v: %v", c.Kind(), err)
		}
		if n != len(frame) {
			t.Fatalf("%v: consumed %v bytes, wanted %v", c.Kind(), n, len(frame))
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	// a map frame declaring an absurd point count is corrupt, not
	// truncated
	buf := []byte{0xff, 0xff, 0xff, 0xff}

	c := datagram.MapCodec{Channel: protocol.ChannelMapMap}
	_, _, err := c.Decode(buf)
	if err == nil {
		t.Fatal("decoded a corrupt frame")
	}
	if errors.Is(err, datagram.ErrTruncated) {
		t.Fatalf("corrupt frame reported as truncated: %v", err)
	}
}

func TestLaserRoundTrip(t *testing.T) {
	c := datagram.LaserCodec{Channel: protocol.ChannelLaser2}
	want := datagram.NewLaserScan(protocol.ChannelLaser2, datagram.LaserScan{
		Seq:            7,
		Timestamp:      100.125,
		ScanTime:       0.05,
		AngleMin:       -1.57,
		AngleMax:       1.57,
		AngleIncrement: 0.01,
		RangeMin:       0.1,
		RangeMax:       30,
		Ranges:         []float32{0.5, 1.5, 2.5},
		Intensities:    []float32{10, 20, 30},
	})

	buf, err := c.Encode(want)
	if err != nil {
		t.Fatal(err)
	}

	rec, _, err := c.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := rec.(*datagram.LaserScan)
	if !ok {
		t.Fatalf("unexpected record type %T", rec)
	}
	if got.Kind() != protocol.ChannelLaser2 {
		t.Fatalf("wanted kind %v, found %v", protocol.ChannelLaser2, got.Kind())
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("wanted %+v, found %+v", want, got)
	}
}

func mustEncode(t *testing.T, c datagram.Codec, rec datagram.Record) []byte {
	t.Helper()

	buf, err := c.Encode(rec)
	if err != nil {
		t.Fatal(err)
	}

	return buf
}
