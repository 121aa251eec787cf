package kalshi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsServer struct {
	srv    *httptest.Server
	frames chan string
	conns  atomic.Int32
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	s := &wsServer{frames: make(chan string, 32)}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns.Add(1)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.frames <- string(data)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) waitFrame(t *testing.T) string {
	t.Helper()

	select {
	case frame := <-s.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame from the feed")
		return ""
	}
}

func startTestFeed(t *testing.T, s *wsServer) *TickerFeed {
	t.Helper()

	pemBytes, _ := genKeyPEM(t, false)
	signer, err := NewSigner(pemBytes)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	feed := NewTickerFeed(s.url(), "test-access-key", signer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	feed.Start(ctx)
	t.Cleanup(feed.Stop)
	return feed
}

func TestSetTickersResubscribesLiveConnection(t *testing.T) {
	s := newWSServer(t)
	feed := startTestFeed(t, s)

	first := s.waitFrame(t)
	if !strings.Contains(first, `"cmd":"subscribe"`) {
		t.Fatalf("first frame is not a subscribe: %s", first)
	}

	feed.SetTickers([]string{"KXNBAGAME-26JAN19LACWAS-LAC"})

	second := s.waitFrame(t)
	if !strings.Contains(second, `"cmd":"subscribe"`) {
		t.Fatalf("expected a subscribe after ticker change, got: %s", second)
	}
	if !strings.Contains(second, "KXNBAGAME-26JAN19LACWAS-LAC") {
		t.Fatalf("resubscribe does not carry the new ticker: %s", second)
	}
	if got := s.conns.Load(); got != 1 {
		t.Fatalf("ticker change should reuse the live connection, saw %d connections", got)
	}
}

func TestSetTickersUnchangedSetSendsNothing(t *testing.T) {
	s := newWSServer(t)
	feed := startTestFeed(t, s)

	s.waitFrame(t) // connect-time subscribe

	feed.SetTickers([]string{"T-AAA", "T-BBB"})
	s.waitFrame(t) // the change

	// Same set, different order: no wire traffic.
	feed.SetTickers([]string{"T-BBB", "T-AAA"})

	select {
	case frame := <-s.frames:
		t.Fatalf("unchanged ticker set should not resubscribe, got: %s", frame)
	case <-time.After(300 * time.Millisecond):
	}
}

// Exercises the single-writer rule under the race detector: heartbeat pings
// and subscribes must serialize on the same connection.
func TestHeartbeatPingSerializesWithSubscribe(t *testing.T) {
	s := newWSServer(t)
	feed := startTestFeed(t, s)

	s.waitFrame(t)

	// Age the last-message stamp so every heartbeat check pings.
	feed.lastMsgMu.Lock()
	feed.lastMsg = time.Now().Add(-2 * heartbeatTimeout)
	feed.lastMsgMu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			feed.checkHeartbeat()
		}()
		go func() {
			defer wg.Done()
			_ = feed.subscribe()
		}()
	}
	wg.Wait()
}
