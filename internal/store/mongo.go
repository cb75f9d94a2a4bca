package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"

	"github.com/zaqqye/applytrack/internal/models"
)

// BSON dates keep milliseconds.
const mongoPrecision = time.Millisecond

// MongoStore keeps applications in a single collection; documents carry
// owner_id and every filter includes it.
type MongoStore struct {
	c *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection("applications")}
}

type applicationDoc struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner_id"`
	Company     string    `bson:"company"`
	Role        string    `bson:"role"`
	Location    string    `bson:"location"`
	Status      string    `bson:"status"`
	AppliedDate time.Time `bson:"applied_date"`
	Notes       string    `bson:"notes,omitempty"`
	ResumeURL   string    `bson:"resume_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toDoc(a models.Application) applicationDoc {
	return applicationDoc{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Company:     a.Company,
		Role:        a.Role,
		Location:    a.Location,
		Status:      string(a.Status),
		AppliedDate: time.Time(a.AppliedDate).UTC(),
		Notes:       a.Notes,
		ResumeURL:   a.ResumeURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (d applicationDoc) model() models.Application {
	return models.Application{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Company:     d.Company,
		Role:        d.Role,
		Location:    d.Location,
		Status:      models.Status(d.Status),
		AppliedDate: datatypes.Date(d.AppliedDate.UTC()),
		Notes:       d.Notes,
		ResumeURL:   d.ResumeURL,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// EnsureIndexes creates the owner/created_at index used by list and snapshot
// queries. It is safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("owner_created"),
	})
	return err
}

func (s *MongoStore) Create(ctx context.Context, ownerID string, app *models.Application) error {
	now := time.Now().UTC().Truncate(mongoPrecision)
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.OwnerID = ownerID
	app.CreatedAt = now
	app.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, toDoc(*app))
	return err
}

func (s *MongoStore) Get(ctx context.Context, ownerID, id string) (models.Application, error) {
	var doc applicationDoc
	err := s.c.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Application{}, ErrNotFound
	}
	if err != nil {
		return models.Application{}, err
	}
	return doc.model(), nil
}

// updateAttempts bounds how often Update re-reads a document that another
// writer changed between the read and the write.
const updateAttempts = 5

var errUpdateContended = errors.New("application changed concurrently, giving up")

// Update writes only when updated_at still holds the value that was read, so
// concurrent edits never reuse a timestamp.
func (s *MongoStore) Update(ctx context.Context, ownerID, id string, patch ApplicationPatch) (models.Application, error) {
	for attempt := 0; attempt < updateAttempts; attempt++ {
		app, err := s.Get(ctx, ownerID, id)
		if err != nil {
			return models.Application{}, err
		}
		prev := app.UpdatedAt
		patch.Apply(&app)
		app.UpdatedAt = nextUpdatedAt(prev, mongoPrecision)

		filter := bson.M{"_id": id, "owner_id": ownerID, "updated_at": prev}
		res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": patchSet(patch, app.UpdatedAt)})
		if err != nil {
			return models.Application{}, err
		}
		if res.MatchedCount == 1 {
			return app, nil
		}
	}
	return models.Application{}, errUpdateContended
}

func patchSet(patch ApplicationPatch, updatedAt time.Time) bson.M {
	set := bson.M{"updated_at": updatedAt}
	for k, v := range patch.fields() {
		set[k] = v
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.AppliedDate != nil {
		set["applied_date"] = time.Time(*patch.AppliedDate).UTC()
	}
	return set
}

func (s *MongoStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, ownerID string, q ListQuery) ([]models.Application, int64, error) {
	filter := bson.M{"owner_id": ownerID}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"company": re},
			bson.M{"role": re},
			bson.M{"location": re},
		}
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	dir := 1
	if q.Descending() {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: q.SortBy, Value: dir}, {Key: "_id", Value: 1}})
	if !q.All {
		opts.SetSkip(int64(q.Offset())).SetLimit(int64(q.Limit))
	}
	apps, err := s.find(ctx, filter, opts)
	return apps, total, err
}

func (s *MongoStore) Snapshot(ctx context.Context, ownerID string) ([]models.Application, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return s.find(ctx, bson.M{"owner_id": ownerID}, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Application, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	apps := make([]models.Application, 0, len(docs))
	for _, d := range docs {
		apps = append(apps, d.model())
	}
	return apps, nil
}
