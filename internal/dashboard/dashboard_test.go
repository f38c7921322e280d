package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/syncstatus"
)

func startServer(t *testing.T, config *Config) *Server {
	t.Helper()
	config.Port = 0
	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// waitForClients blocks until the server has registered n clients.
func waitForClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for server.ClientCount() != n {
		select {
		case <-deadline:
			t.Fatalf("Expected %d clients, got %d", n, server.ClientCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewServer(nil).Stop(); err != nil {
		t.Errorf("Stop() on an unstarted server failed: %v", err)
	}
}

func TestMultipleClientsReceiveBroadcast(t *testing.T) {
	server := startServer(t, &Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 3
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = dial(t, ctx, server)
	}
	waitForClients(t, server, numClients)

	msg, err := NewMessage(MessageTypeSyncState, SyncStateData{From: syncstatus.Synced, To: syncstatus.RemoteChanges})
	if err != nil {
		t.Fatal(err)
	}
	server.Broadcast(msg)

	for i, conn := range conns {
		got := readMessage(t, ctx, conn)
		if got.Type != MessageTypeSyncState {
			t.Errorf("client %d: type = %s, want %s", i, got.Type, MessageTypeSyncState)
		}
		var data map[string]string
		if err := json.Unmarshal(got.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data["to"] != "remoteChanges" {
			t.Errorf("client %d: to = %q, want remoteChanges", i, data["to"])
		}
	}
}

func TestClientDisconnect(t *testing.T) {
	server := startServer(t, &Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	waitForClients(t, server, 1)

	conn.Close(websocket.StatusNormalClosure, "")
	waitForClients(t, server, 0)
}

func TestHealthEndpoint(t *testing.T) {
	server := startServer(t, &Config{})

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
	if health["clients"] != float64(0) {
		t.Errorf("clients = %v, want 0", health["clients"])
	}
}

func TestHandlerStoreEvents(t *testing.T) {
	root := t.TempDir()
	if err := store.Init(root, "Roadmap", format.Markdown{}); err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(root, format.Markdown{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateCard("todo", "Existing", "", nil); err != nil {
		t.Fatal(err)
	}

	config := &Config{}
	var handler *Handler
	config.Welcome = func() (Message, error) { return handler.Snapshot() }
	server := startServer(t, config)
	handler = NewHandler(server, st, func() syncstatus.State { return syncstatus.Synced }, nil)
	cancelSub := st.Subscribe(handler.OnStoreEvent)
	defer cancelSub()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	snapshot := readMessage(t, ctx, conn)
	if snapshot.Type != MessageTypeSnapshot {
		t.Fatalf("first message type = %s, want snapshot", snapshot.Type)
	}
	var snap SnapshotData
	if err := json.Unmarshal(snapshot.Data, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Board.Title != "Roadmap" || len(snap.Cards) != 1 || snap.Cards[0].Title != "Existing" {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Board.Columns) != 3 || snap.Board.Columns[0].Cards != 1 {
		t.Errorf("snapshot columns = %+v", snap.Board.Columns)
	}
	waitForClients(t, server, 1)

	if _, err := st.CreateCard("doing", "Fresh card", "body", nil); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeCardUpdate {
		t.Fatalf("type = %s, want card_update", msg.Type)
	}
	var card CardUpdateData
	if err := json.Unmarshal(msg.Data, &card); err != nil {
		t.Fatal(err)
	}
	if card.Action != "created" || card.Title != "Fresh card" || card.Column != "doing" || card.CardID == "" {
		t.Errorf("card update = %+v", card)
	}

	if err := st.SetTitle("Renamed"); err != nil {
		t.Fatal(err)
	}
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeBoardUpdate {
		t.Fatalf("type = %s, want board_update", msg.Type)
	}
	var board BoardUpdateData
	if err := json.Unmarshal(msg.Data, &board); err != nil {
		t.Fatal(err)
	}
	if board.Title != "Renamed" {
		t.Errorf("board title = %q, want Renamed", board.Title)
	}
}
