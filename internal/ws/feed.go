package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/dashboard"
	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/store"
)

// SnapshotMessage is pushed on connect and after every change. It always
// carries the full record set; clients replace what they hold.
type SnapshotMessage struct {
	Type         string               `json:"type"`
	Applications []models.Application `json:"applications"`
	Summary      *dashboard.Summary   `json:"summary,omitempty"`
	Message      string               `json:"message,omitempty"`
	SentAt       time.Time            `json:"sent_at"`
}

// Feed builds snapshots from the store and pushes them through the hub.
type Feed struct {
	Store  store.ApplicationStore
	Hub    *Hub
	Recent int
	Log    *zap.Logger

	// Publishing is serialized per user so that an owner's snapshots reach
	// their clients in the order they were read.
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lockUser blocks until userID's publish lock is held and returns its release.
// Entries are removed once nobody holds or waits on them.
func (f *Feed) lockUser(userID string) func() {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = make(map[string]*userLock)
	}
	l, ok := f.locks[userID]
	if !ok {
		l = &userLock{}
		f.locks[userID] = l
	}
	l.refs++
	f.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, userID)
		}
		f.mu.Unlock()
	}
}

// Publish sends the owner's current snapshot to each of their subscriptions.
// Nothing is read when the owner has no open connection. A store failure is
// reported to the subscribers as an error message.
func (f *Feed) Publish(ctx context.Context, userID string) {
	if f == nil || f.Hub == nil {
		return
	}
	if f.Hub.Subscribers(userID) == 0 {
		return
	}
	unlock := f.lockUser(userID)
	defer unlock()

	msg, err := f.Build(ctx, userID)
	if err != nil {
		f.Log.Error("ws: build snapshot", zap.String("user_id", userID), zap.Error(err))
		msg = SnapshotMessage{
			Type:    "error",
			Message: "Could not load your applications. Please try again.",
			SentAt:  time.Now().UTC(),
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		f.Log.Error("ws: marshal snapshot", zap.Error(err))
		return
	}
	f.Hub.send(userID, data)
}

func (f *Feed) Build(ctx context.Context, userID string) (SnapshotMessage, error) {
	apps, err := f.Store.Snapshot(ctx, userID)
	if err != nil {
		return SnapshotMessage{}, err
	}
	recent := f.Recent
	if recent <= 0 {
		recent = dashboard.DefaultRecent
	}
	summary := dashboard.Summarize(apps, recent)
	return SnapshotMessage{
		Type:         "snapshot",
		Applications: apps,
		Summary:      &summary,
		SentAt:       time.Now().UTC(),
	}, nil
}
