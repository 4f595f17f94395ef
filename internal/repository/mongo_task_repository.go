package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/TWRT/task-tracker/internal/models"
)

const tasksCollection = "tasks"

type taskDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	IsCompleted bool               `bson:"isCompleted"`
	Priority    string             `bson:"priority"`
	DueDate     *time.Time         `bson:"dueDate,omitempty"`
	Tags        []string           `bson:"tags"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (doc taskDocument) toTask() models.Task {
	task := models.Task{
		ID:          doc.ID.Hex(),
		Title:       doc.Title,
		Description: doc.Description,
		IsCompleted: doc.IsCompleted,
		Priority:    models.Priority(doc.Priority),
		Tags:        doc.Tags,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
	if doc.DueDate != nil {
		due := doc.DueDate.UTC()
		task.DueDate = &due
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	return task
}

// MongoTaskRepository keeps tasks in a single MongoDB collection. BSON dates
// hold milliseconds, so every timestamp it returns is truncated to that.
type MongoTaskRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *slog.Logger
	now    func() time.Time
}

func OpenMongo(ctx context.Context, uri, database string, log *slog.Logger, opts ...Option) (*MongoTaskRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Error trying to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		log.Error("connection problem", "driver", "mongo", "error", err)
		return nil, fmt.Errorf("Error trying to ping mongo: %w", err)
	}

	repo, err := NewMongoTaskRepository(ctx, client, client.Database(database), log, opts...)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

// NewMongoTaskRepository uses the tasks collection of db and makes sure its
// indexes exist.
func NewMongoTaskRepository(ctx context.Context, client *mongo.Client, db *mongo.Database, log *slog.Logger, opts ...Option) (*MongoTaskRepository, error) {
	o := applyOptions(opts)
	coll := db.Collection(tasksCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "isCompleted", Value: 1}, {Key: "dueDate", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("Error trying to create task indexes: %w", err)
	}

	return &MongoTaskRepository{client: client, coll: coll, log: log, now: o.now}, nil
}

func (r *MongoTaskRepository) Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	now := mongoTime(r.now())
	d, err := normalizeDraft(draft, now)
	if err != nil {
		return models.Task{}, err
	}

	doc := taskDocument{
		ID:          primitive.NewObjectID(),
		Title:       d.Title,
		Description: d.Description,
		IsCompleted: false,
		Priority:    string(d.Priority),
		Tags:        d.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.DueDate != nil {
		due := mongoTime(*d.DueDate)
		doc.DueDate = &due
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return models.Task{}, fmt.Errorf("Error trying to create the task: %w", err)
	}
	return doc.toTask(), nil
}

func (r *MongoTaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Task{}, models.ErrInvalidTaskID
	}

	var doc taskDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Task{}, models.ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to get task %s: %w", id, err)
	}
	return doc.toTask(), nil
}

func (r *MongoTaskRepository) FindMany(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.coll.Find(ctx, mongoFilter(q), findOpts)
	if err != nil {
		return nil, fmt.Errorf("Error trying to list tasks: %w", err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("Error trying to read tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, doc.toTask())
	}
	return tasks, nil
}

func (r *MongoTaskRepository) UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Task{}, models.ErrInvalidTaskID
	}

	now := mongoTime(r.now())
	p, err := normalizePatch(patch, now)
	if err != nil {
		return models.Task{}, err
	}

	// updatedAt moves at least 1ms past the stored value. Inside a pipeline
	// a string starting with "$" is a field path unless wrapped in $literal.
	set := bson.M{
		"updatedAt": bson.M{"$max": bson.A{now, bson.M{"$add": bson.A{"$updatedAt", 1}}}},
	}
	if p.Title != nil {
		set["title"] = literal(*p.Title)
	}
	if p.Description != nil {
		set["description"] = literal(*p.Description)
	}
	if p.Priority != nil {
		set["priority"] = literal(string(*p.Priority))
	}
	if p.IsCompleted != nil {
		set["isCompleted"] = literal(*p.IsCompleted)
	}
	if p.DueDate != nil {
		set["dueDate"] = literal(mongoTime(*p.DueDate))
	}
	if p.Tags != nil {
		set["tags"] = literal(*p.Tags)
	}

	update := mongo.Pipeline{{{Key: "$set", Value: set}}}
	if p.ClearDueDate && p.DueDate == nil {
		update = append(update, bson.D{{Key: "$unset", Value: "dueDate"}})
	}

	var doc taskDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Task{}, models.ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to update task %s: %w", id, err)
	}
	return doc.toTask(), nil
}

func (r *MongoTaskRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, models.ErrInvalidTaskID
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("Error trying to delete task %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoTaskRepository) Count(ctx context.Context, q models.TaskQuery) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, mongoFilter(q))
	if err != nil {
		return 0, fmt.Errorf("Error trying to count tasks: %w", err)
	}
	return n, nil
}

func (r *MongoTaskRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoTaskRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoFilter(q models.TaskQuery) bson.M {
	filter := bson.M{}
	if q.Completed != nil {
		filter["isCompleted"] = *q.Completed
	}
	if q.Priority != nil {
		filter["priority"] = *q.Priority
	}
	if q.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}
	if q.DueBefore != nil {
		filter["dueDate"] = bson.M{"$ne": nil, "$lt": mongoTime(*q.DueBefore)}
	}
	return filter
}

func literal(v any) bson.M {
	return bson.M{"$literal": v}
}

func mongoTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
