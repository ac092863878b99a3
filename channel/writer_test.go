package channel_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sishi44/locator-ros-bridge/channel"
)

func listen(t *testing.T) *channel.Writer {
	t.Helper()

	w, err := channel.Listen("laser", 0)
	if err != nil {
		t.Fatal(err)
	}

	return w
}

func TestWriterSend(t *testing.T) {
	w := listen(t)
	defer w.Stop()
	go w.Run()

	conn, err := net.Dial("tcp", w.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// wait for the accept worker to register the peer
	payload := []byte("datagram")
	deadline := time.Now().Add(time.Second)
	for w.Send(payload) != channel.SendOK {
		if time.Now().After(deadline) {
			t.Fatal("send never succeeded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	buf := make([]byte, len(payload))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("wanted %q, found %q", payload, buf)
	}
}

func TestWriterSendNoPeer(t *testing.T) {
	w := listen(t)
	defer w.Stop()
	go w.Run()

	if status := w.Send([]byte("datagram")); status != channel.SendIOError {
		t.Fatalf("wanted SendIOError without a peer, found %v", status)
	}
}

// Sequence numbers start at 1 and advance exactly once per send
// attempt, successful or not.
func TestWriterSequenceNumbers(t *testing.T) {
	w := listen(t)
	defer w.Stop()
	go w.Run()

	for i := 1; i <= 5; i++ {
		seq := w.NextSeq()
		if seq != uint32(i) {
			t.Fatalf("wanted seq %v, found %v", i, seq)
		}

		// no peer is connected, every send fails; the sequence must
		// keep advancing regardless
		if status := w.Send([]byte{byte(seq)}); status != channel.SendIOError {
			t.Fatalf("wanted SendIOError, found %v", status)
		}
	}
}

func TestWriterStopIdempotent(t *testing.T) {
	w := listen(t)

	done := make(chan error, 1)
	go func() {
		done <- w.Run()
	}()

	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stopped writer returned: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer did not exit after Stop")
	}

	if status := w.Send([]byte("datagram")); status != channel.SendIOError {
		t.Fatalf("wanted SendIOError after Stop, found %v", status)
	}
}
