package channel_test

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/sishi44/locator-ros-bridge/channel"
	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/protocol"
)

func poseFrames(t *testing.T, n int) ([]byte, []datagram.Record) {
	t.Helper()

	c := datagram.PoseCodec{}
	var stream []byte
	var recs []datagram.Record
	for i := 0; i < n; i++ {
		rec := &datagram.LocalizationPose{
			Timestamp: float64(i),
			UniqueID:  int64(i),
			State:     datagram.LocStateLocalized,
			Pose:      datagram.Pose2D{X: float64(i), Y: -float64(i), Yaw: 0.1},
		}
		buf, err := c.Encode(rec)
		if err != nil {
			t.Fatal(err)
		}

		stream = append(stream, buf...)
		recs = append(recs, rec)
	}

	return stream, recs
}

// feed writes stream to a reader in the given chunk sizes and returns
// the records it emitted.
func feed(t *testing.T, stream []byte, chunks []int) []datagram.Record {
	t.Helper()

	local, remote := net.Pipe()

	var got []datagram.Record
	r := channel.Open("pose", local, datagram.PoseCodec{}, func(rec datagram.Record) {
		got = append(got, rec)
	})

	done := make(chan error, 1)
	go func() {
		done <- r.Run()
	}()

	off := 0
	for _, n := range chunks {
		if _, err := remote.Write(stream[off : off+n]); err != nil {
			t.Fatal(err)
		}
		off += n
	}
	if off != len(stream) {
		t.Fatalf("chunk sizes cover %v bytes, stream has %v", off, len(stream))
	}

	remote.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not exit")
	}

	return got
}

// The emitted record sequence must not depend on where the stream got
// split into chunks.
func TestReaderChunkBoundaryIndependence(t *testing.T) {
	stream, want := poseFrames(t, 4)

	splits := [][]int{
		{len(stream)},
		{1, len(stream) - 1},
		{len(stream) - 1, 1},
		{7, 13, len(stream) - 20},
	}
	// one byte at a time
	ones := make([]int, len(stream))
	for i := range ones {
		ones[i] = 1
	}
	splits = append(splits, ones)

	for _, chunks := range splits {
		got := feed(t, stream, chunks)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunks %v: wanted %v records, found %v", chunks, len(want), len(got))
		}
	}
}

func TestReaderCorruptFrame(t *testing.T) {
	local, remote := net.Pipe()

	r := channel.Open("map", local, datagram.MapCodec{Channel: protocol.ChannelMapMap}, func(datagram.Record) {
		t.Error("emitted a record from a corrupt stream")
	})

	done := make(chan error, 1)
	go func() {
		done <- r.Run()
	}()

	// absurd point count
	if _, err := remote.Write([]byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("reader accepted a corrupt frame")
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not exit on corrupt frame")
	}

	// the socket must be closed: writes to the peer side fail
	remote.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := remote.Write([]byte{0}); err == nil {
		t.Fatal("socket still open after corrupt frame")
	}
}

func TestReaderStop(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	r := channel.Open("pose", local, datagram.PoseCodec{}, func(datagram.Record) {})

	done := make(chan error, 1)
	go func() {
		done <- r.Run()
	}()

	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stopped reader returned: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not exit after Stop")
	}
}
