package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.viam.com/test"

	"camtrap/internal/logger"
	"camtrap/internal/ui"
)

func startHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()
	hub := NewHubService(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Send(conn, Event{Type: EventState, State: &ui.State{ThresholdText: "0.500"}})
		hub.Register(conn)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event Event
	test.That(t, conn.ReadJSON(&event), test.ShouldBeNil)
	return event
}

func TestHub_BroadcastsViewEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	first := readEvent(t, conn)
	test.That(t, first.Type, test.ShouldEqual, EventState)
	test.That(t, first.State.ThresholdText, test.ShouldEqual, "0.500")

	// wait until the handler has registered the client
	deadline := time.Now().Add(5 * time.Second)
	for hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	test.That(t, hub.GetClientCount(), test.ShouldEqual, 1)

	hub.AppendLog("Saved: /out/a.jpg\n")
	hub.ShowError("Invalid Input", "Please enter a valid number")
	hub.Render(ui.State{ControlsEnabled: false, InputDir: "/in"})

	log := readEvent(t, conn)
	test.That(t, log.Type, test.ShouldEqual, EventLog)
	test.That(t, log.Text, test.ShouldEqual, "Saved: /out/a.jpg\n")

	errEvent := readEvent(t, conn)
	test.That(t, errEvent.Type, test.ShouldEqual, EventError)
	test.That(t, errEvent.Message, test.ShouldEqual, "Please enter a valid number")

	state := readEvent(t, conn)
	test.That(t, state.Type, test.ShouldEqual, EventState)
	test.That(t, state.State.InputDir, test.ShouldEqual, "/in")
	test.That(t, state.State.ControlsEnabled, test.ShouldBeFalse)
}

func TestHub_StoppedDoesNotBlock(t *testing.T) {
	hub := NewHubService(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for i := 0; i < 1000; i++ {
		hub.AppendLog("dropped\n")
	}
	test.That(t, hub.Register(nil), test.ShouldBeFalse)
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.GetClientCount() != n && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	test.That(t, hub.GetClientCount(), test.ShouldEqual, n)
}

func TestHub_StalledClientDoesNotBlockPublishers(t *testing.T) {
	hub, srv := startHub(t)
	hub.writeWait = 200 * time.Millisecond

	// connected but never reads
	dial(t, srv)
	waitForClients(t, hub, 1)

	chunk := strings.Repeat("x", 64*1024)
	published := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.AppendLog(chunk)
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("AppendLog blocked behind a client that stopped reading")
	}

	// the stalled client is dropped and the hub keeps serving new ones
	waitForClients(t, hub, 0)
	conn := dial(t, srv)
	test.That(t, readEvent(t, conn).Type, test.ShouldEqual, EventState)
	waitForClients(t, hub, 1)

	hub.AppendLog("alive\n")
	for {
		event := readEvent(t, conn)
		if event.Text == "alive\n" {
			break
		}
	}
}
