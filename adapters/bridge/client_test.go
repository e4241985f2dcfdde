package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fakeBridge is a websocket server standing in for the native bridge process.
// respond decides what, if anything, to send back for each run_shell frame.
type fakeBridge struct {
	t       *testing.T
	respond func(f frame) *frame

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeBridge(t *testing.T, respond func(f frame) *frame) (*fakeBridge, *httptest.Server) {
	fb := &fakeBridge{t: t, respond: respond}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.mu.Lock()
		fb.conn = conn
		fb.mu.Unlock()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			if fb.respond == nil {
				continue
			}
			if reply := fb.respond(f); reply != nil {
				fb.mu.Lock()
				conn.WriteJSON(reply)
				fb.mu.Unlock()
			}
		}
	}))
	t.Cleanup(server.Close)
	return fb, server
}

// push sends an unsolicited frame, as the bridge does for device events.
func (fb *fakeBridge) push(t *testing.T, messageType int, payload []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fb.mu.Lock()
		conn := fb.conn
		fb.mu.Unlock()
		if conn != nil {
			if err := conn.WriteMessage(messageType, payload); err != nil {
				t.Fatalf("push failed: %v", err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("bridge connection never arrived")
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func startClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client := NewClient(Config{URL: wsURL(server)}, zap.NewNop())
	t.Cleanup(client.Close)
	return client
}

func TestRunShellReturnsParsedResult(t *testing.T) {
	_, server := newFakeBridge(t, func(f frame) *frame {
		if f.Type != frameTypeRunShell {
			t.Errorf("unexpected frame type %q", f.Type)
		}
		if f.Script != "echo hi" {
			t.Errorf("script = %q, want %q", f.Script, "echo hi")
		}
		if f.TimeoutMs != 5000 {
			t.Errorf("timeout_ms = %d, want 5000", f.TimeoutMs)
		}
		return &frame{
			ID:     f.ID,
			Type:   frameTypeResult,
			Result: json.RawMessage(`{"stdout":"hi\n","stderr":"","exit_code":0}`),
		}
	})

	client := startClient(t, server)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res := client.RunShell(context.Background(), "echo hi", 5*time.Second)
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Stdout != "hi\n" || res.ExitCode != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunShellTimeoutYieldsAbsentResult(t *testing.T) {
	// The bridge swallows the command and never answers.
	_, server := newFakeBridge(t, func(frame) *frame { return nil })

	client := startClient(t, server)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	res := client.RunShell(context.Background(), "sleep 60", 100*time.Millisecond)
	if res != nil {
		t.Fatalf("expected absent result, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s, should be near 100ms", elapsed)
	}
}

func TestRunShellMalformedResultYieldsAbsentResult(t *testing.T) {
	_, server := newFakeBridge(t, func(f frame) *frame {
		return &frame{
			ID:     f.ID,
			Type:   frameTypeResult,
			Result: json.RawMessage(`"not an object"`),
		}
	})

	client := startClient(t, server)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if res := client.RunShell(context.Background(), "true", time.Second); res != nil {
		t.Fatalf("expected absent result for malformed payload, got %+v", res)
	}
}

func TestRunShellBeforeStart(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1/bridge"}, zap.NewNop())
	defer client.Close()

	if res := client.RunShell(context.Background(), "true", time.Second); res != nil {
		t.Fatalf("expected absent result before Start, got %+v", res)
	}
}

func TestEventFramesReachHandler(t *testing.T) {
	fb, server := newFakeBridge(t, nil)

	client := startClient(t, server)
	events := make(chan string, 1)
	client.OnEvent(func(raw string) { events <- raw })
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	payload := `{"type":"event","body":"{\"event\":\"playing\",\"data\":\"Playing\"}"}`
	fb.push(t, websocket.TextMessage, []byte(payload))

	select {
	case raw := <-events:
		if raw != `{"event":"playing","data":"Playing"}` {
			t.Errorf("unexpected event payload: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the handler")
	}
}

func TestBinaryFramesReachInputHandler(t *testing.T) {
	fb, server := newFakeBridge(t, nil)

	client := startClient(t, server)
	sizes := make(chan int, 1)
	client.OnInputData(func(buf []byte) { sizes <- len(buf) })
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fb.push(t, websocket.BinaryMessage, make([]byte, 320))

	select {
	case n := <-sizes:
		if n != 320 {
			t.Errorf("frame size = %d, want 320", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audio frame never reached the handler")
	}
}

func TestUnknownFramesAreIgnored(t *testing.T) {
	fb, server := newFakeBridge(t, func(f frame) *frame {
		return &frame{
			ID:     f.ID,
			Type:   frameTypeResult,
			Result: json.RawMessage(`{"stdout":"ok","stderr":"","exit_code":0}`),
		}
	})

	client := startClient(t, server)
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fb.push(t, websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
	fb.push(t, websocket.TextMessage, []byte(`not json`))

	// The connection must survive both frames.
	if res := client.RunShell(context.Background(), "true", 2*time.Second); res == nil {
		t.Fatal("connection did not survive unknown frames")
	}
}
