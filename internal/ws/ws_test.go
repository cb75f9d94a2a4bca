package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/store"
)

func setupFeed(t *testing.T) (*Feed, *store.GormStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Application{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.NewGorm(db)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	return &Feed{Store: st, Hub: hub, Recent: 3, Log: zap.NewNop()}, st
}

func serve(t *testing.T, feed *Feed, userID string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		middleware.SetUser(c, models.User{UserID: userID})
		c.Next()
	}, SnapshotHandler(feed))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) SnapshotMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg SnapshotMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSnapshotOnConnectAndAfterChange(t *testing.T) {
	feed, st := setupFeed(t)
	srv := serve(t, feed, "owner-1")
	conn := dial(t, srv)

	first := readSnapshot(t, conn)
	if first.Type != "snapshot" {
		t.Fatalf("type = %q, want snapshot", first.Type)
	}
	if len(first.Applications) != 0 || first.Summary == nil || first.Summary.Total != 0 {
		t.Errorf("initial snapshot = %+v", first)
	}

	d, _ := models.ParseDate("2025-07-01")
	app := &models.Application{Company: "Tech Corp", Role: "Frontend Developer", Location: "Remote", Status: models.StatusApplied, AppliedDate: d}
	if err := st.Create(context.Background(), "owner-1", app); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	feed.Publish(context.Background(), "owner-1")

	next := readSnapshot(t, conn)
	if len(next.Applications) != 1 || next.Applications[0].ID != app.ID {
		t.Fatalf("snapshot after create = %+v", next.Applications)
	}
	if next.Summary.Total != 1 || len(next.Summary.ByStatus) != 1 || next.Summary.ByStatus[0].Status != models.StatusApplied {
		t.Errorf("summary = %+v", next.Summary)
	}
}

func TestPublishOnlyReachesOwner(t *testing.T) {
	feed, _ := setupFeed(t)
	other := dial(t, serve(t, feed, "owner-2"))
	readSnapshot(t, other)

	feed.Publish(context.Background(), "owner-1")

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("owner-2 received owner-1's snapshot")
	}
}

func TestUnsubscribeOnClose(t *testing.T) {
	feed, _ := setupFeed(t)
	conn := dial(t, serve(t, feed, "owner-1"))
	readSnapshot(t, conn)

	if n := feed.Hub.Subscribers("owner-1"); n != 1 {
		t.Fatalf("Subscribers = %d, want 1", n)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for feed.Hub.Subscribers("owner-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSnapshotMessageJSON(t *testing.T) {
	msg, err := (&Feed{Store: emptyStore{}}).Build(context.Background(), "x")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	raw, _ := json.Marshal(msg)
	if !strings.Contains(string(raw), `"applications":[]`) {
		t.Errorf("empty snapshot should carry an empty list: %s", raw)
	}
}

type emptyStore struct{ store.ApplicationStore }

func (emptyStore) Snapshot(context.Context, string) ([]models.Application, error) {
	return []models.Application{}, nil
}

// countingStore records Snapshot calls and, for the gated user, waits for
// release before answering.
type countingStore struct {
	store.ApplicationStore
	calls   atomic.Int32
	gated   string
	entered chan struct{}
	release chan struct{}
}

func (s *countingStore) Snapshot(_ context.Context, userID string) ([]models.Application, error) {
	s.calls.Add(1)
	if userID == s.gated {
		s.entered <- struct{}{}
		<-s.release
	}
	return []models.Application{}, nil
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)
	return hub
}

func TestPublishWithoutSubscribersSkipsStore(t *testing.T) {
	st := &countingStore{}
	feed := &Feed{Store: st, Hub: runHub(t), Log: zap.NewNop()}

	for i := 0; i < 5; i++ {
		feed.Publish(context.Background(), "owner-1")
	}
	if n := st.calls.Load(); n != 0 {
		t.Fatalf("Snapshot called %d times with no subscribers, want 0", n)
	}

	cl := newClient(feed.Hub, nil, "owner-1")
	if !feed.Hub.add(cl) {
		t.Fatal("hub refused client")
	}
	feed.Publish(context.Background(), "owner-1")
	if n := st.calls.Load(); n != 1 {
		t.Errorf("Snapshot called %d times with one subscriber, want 1", n)
	}
	select {
	case <-cl.send:
	case <-time.After(time.Second):
		t.Error("subscriber received nothing")
	}
	if len(feed.locks) != 0 {
		t.Errorf("locks left behind: %d", len(feed.locks))
	}
}

func TestSlowPublishDoesNotBlockOtherUsers(t *testing.T) {
	st := &countingStore{
		gated:   "slow",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	feed := &Feed{Store: st, Hub: runHub(t), Log: zap.NewNop()}
	for _, id := range []string{"slow", "fast"} {
		if !feed.Hub.add(newClient(feed.Hub, nil, id)) {
			t.Fatal("hub refused client")
		}
	}

	slowDone := make(chan struct{})
	go func() {
		feed.Publish(context.Background(), "slow")
		close(slowDone)
	}()
	<-st.entered

	fastDone := make(chan struct{})
	go func() {
		feed.Publish(context.Background(), "fast")
		close(fastDone)
	}()
	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("publish for one user waited on another user's snapshot")
	}

	close(st.release)
	<-slowDone
}
