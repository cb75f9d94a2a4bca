package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/zaqqye/applytrack/internal/models"
)

func mongoDoc(id string, updated time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "owner_id", Value: "owner-1"},
		{Key: "company", Value: "Acme"},
		{Key: "role", Value: "Software Engineer"},
		{Key: "location", Value: "Remote"},
		{Key: "status", Value: string(models.StatusApplied)},
		{Key: "applied_date", Value: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "created_at", Value: updated.Add(-time.Hour)},
		{Key: "updated_at", Value: updated},
	}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func found(mt *mtest.T, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, docs...)
}

func matched(n int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func startedCommands(mt *mtest.T, name string) []*event.CommandStartedEvent {
	var out []*event.CommandStartedEvent
	for e := mt.GetStartedEvent(); e != nil; e = mt.GetStartedEvent() {
		if e.CommandName == name {
			out = append(out, e)
		}
	}
	return out
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	prev := time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC)

	mt.Run("create sets owner and timestamps", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		app := sample("Acme", models.StatusApplied)
		if err := s.Create(ctx, "owner-1", app); err != nil {
			mt.Fatalf("Create failed: %v", err)
		}
		if app.ID == "" || app.OwnerID != "owner-1" {
			mt.Errorf("Create left ID=%q OwnerID=%q", app.ID, app.OwnerID)
		}
		if app.CreatedAt.IsZero() || !app.UpdatedAt.Equal(app.CreatedAt) {
			mt.Errorf("CreatedAt = %v, UpdatedAt = %v", app.CreatedAt, app.UpdatedAt)
		}
		if app.CreatedAt.Nanosecond()%int(time.Millisecond) != 0 {
			mt.Errorf("CreatedAt %v not truncated to milliseconds", app.CreatedAt)
		}
	})

	mt.Run("duplicate id surfaces the driver error", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := s.Create(ctx, "owner-1", sample("Acme", models.StatusApplied))
		if !mongo.IsDuplicateKeyError(err) {
			mt.Errorf("Create err = %v, want duplicate key error", err)
		}
	})

	mt.Run("get maps a document", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(found(mt, mongoDoc("app-1", prev)))

		got, err := s.Get(ctx, "owner-1", "app-1")
		if err != nil {
			mt.Fatalf("Get failed: %v", err)
		}
		if got.ID != "app-1" || got.Company != "Acme" || got.Status != models.StatusApplied {
			mt.Errorf("Get = %+v", got)
		}
		if d := models.FormatDate(got.AppliedDate); d != "2025-07-01" {
			mt.Errorf("AppliedDate = %s", d)
		}
		if !got.UpdatedAt.Equal(prev) {
			mt.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, prev)
		}

		finds := startedCommands(mt, "find")
		if len(finds) != 1 {
			mt.Fatalf("find commands = %d, want 1", len(finds))
		}
		owner, ok := finds[0].Command.Lookup("filter", "owner_id").StringValueOK()
		if !ok || owner != "owner-1" {
			mt.Errorf("find filter owner_id = %q", owner)
		}
	})

	mt.Run("get missing", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(found(mt))

		if _, err := s.Get(ctx, "owner-1", "nope"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Get err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("update sets fields where updated_at is unchanged", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(found(mt, mongoDoc("app-1", prev)), matched(1))

		st := models.StatusInterview
		updated, err := s.Update(ctx, "owner-1", "app-1", ApplicationPatch{Status: &st})
		if err != nil {
			mt.Fatalf("Update failed: %v", err)
		}
		if updated.Status != models.StatusInterview || updated.Company != "Acme" {
			mt.Errorf("Update = %+v", updated)
		}
		if !updated.UpdatedAt.After(prev) {
			mt.Errorf("UpdatedAt %v not after %v", updated.UpdatedAt, prev)
		}

		updates := startedCommands(mt, "update")
		if len(updates) != 1 {
			mt.Fatalf("update commands = %d, want 1", len(updates))
		}
		cmd := updates[0].Command
		if status, ok := cmd.Lookup("updates", "0", "u", "$set", "status").StringValueOK(); !ok || status != "Interview" {
			mt.Errorf("$set.status = %q (string: %v)", status, ok)
		}
		if ms, ok := cmd.Lookup("updates", "0", "u", "$set", "updated_at").DateTimeOK(); !ok || ms != updated.UpdatedAt.UnixMilli() {
			mt.Errorf("$set.updated_at = %d, want %d", ms, updated.UpdatedAt.UnixMilli())
		}
		if ms, ok := cmd.Lookup("updates", "0", "q", "updated_at").DateTimeOK(); !ok || ms != prev.UnixMilli() {
			mt.Errorf("filter updated_at = %d, want %d", ms, prev.UnixMilli())
		}
		if _, ok := cmd.Lookup("updates", "0", "u", "$set", "company").StringValueOK(); ok {
			mt.Error("untouched field company was written")
		}
	})

	mt.Run("update retries after a concurrent write", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		racedTo := prev.Add(time.Second)
		mt.AddMockResponses(
			found(mt, mongoDoc("app-1", prev)), matched(0),
			found(mt, mongoDoc("app-1", racedTo)), matched(1),
		)

		notes := "second try"
		updated, err := s.Update(ctx, "owner-1", "app-1", ApplicationPatch{Notes: &notes})
		if err != nil {
			mt.Fatalf("Update failed: %v", err)
		}
		if !updated.UpdatedAt.After(racedTo) {
			mt.Errorf("UpdatedAt %v not after the concurrent write at %v", updated.UpdatedAt, racedTo)
		}
		if updated.Notes != "second try" {
			mt.Errorf("Notes = %q", updated.Notes)
		}

		updates := startedCommands(mt, "update")
		if len(updates) != 2 {
			mt.Fatalf("update commands = %d, want 2", len(updates))
		}
		if ms, _ := updates[1].Command.Lookup("updates", "0", "q", "updated_at").DateTimeOK(); ms != racedTo.UnixMilli() {
			mt.Errorf("retry filtered on updated_at %d, want %d", ms, racedTo.UnixMilli())
		}
	})

	mt.Run("update of a document deleted meanwhile", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(found(mt, mongoDoc("app-1", prev)), matched(0), found(mt))

		notes := "gone"
		if _, err := s.Update(ctx, "owner-1", "app-1", ApplicationPatch{Notes: &notes}); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Update err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("update gives up under constant contention", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		for i := 0; i < updateAttempts; i++ {
			mt.AddMockResponses(found(mt, mongoDoc("app-1", prev.Add(time.Duration(i)*time.Second))), matched(0))
		}

		notes := "never lands"
		if _, err := s.Update(ctx, "owner-1", "app-1", ApplicationPatch{Notes: &notes}); !errors.Is(err, errUpdateContended) {
			mt.Errorf("Update err = %v, want errUpdateContended", err)
		}
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		if err := s.Delete(ctx, "owner-1", "app-1"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Delete err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("snapshot decodes every document", func(mt *mtest.T) {
		s := &MongoStore{c: mt.Coll}
		mt.AddMockResponses(found(mt, mongoDoc("app-2", prev.Add(time.Hour)), mongoDoc("app-1", prev)))

		apps, err := s.Snapshot(ctx, "owner-1")
		if err != nil {
			mt.Fatalf("Snapshot failed: %v", err)
		}
		if len(apps) != 2 || apps[0].ID != "app-2" || apps[1].ID != "app-1" {
			mt.Errorf("Snapshot = %+v", apps)
		}
	})
}
