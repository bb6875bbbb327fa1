package relay

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

func TestSendConcurrentWithClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		conn, _ := testConn(t, "buyer-1")
		conn.Start()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = conn.Send([]byte(fmt.Sprintf("sender %d frame %d", i, j)))
				}
			}(i)
		}
		conn.Close(websocket.CloseNormalClosure, "shutting down")
		wg.Wait()

		if err := conn.Send([]byte("late")); !errors.Is(err, ErrConnectionClosed) {
			t.Fatalf("send after close = %v, want ErrConnectionClosed", err)
		}
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	conn, _ := testConn(t, "buyer-1")
	conn.Start()

	conn.Close(websocket.CloseNormalClosure, "done")
	if err := conn.Send([]byte("hello")); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("send = %v, want ErrConnectionClosed", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, _ := testConn(t, "buyer-1")
	conn.Start()

	conn.Close(websocket.CloseNormalClosure, "first")
	conn.Close(websocket.CloseNormalClosure, "second")
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	// No Start: nothing drains the outbox, so it fills at capacity.
	conn, _ := testConn(t, "buyer-1")

	for i := 0; i < sendBufferSize; i++ {
		if err := conn.Send([]byte("frame")); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := conn.Send([]byte("overflow")); !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("overflow send = %v, want ErrSendBufferFull", err)
	}
	if err := conn.Send([]byte("after")); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("send after overflow = %v, want ErrConnectionClosed", err)
	}
}
