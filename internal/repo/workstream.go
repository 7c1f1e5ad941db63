package repo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workstreamsCollection = "workstreams"

// Workstream is one executed task persisted for an agent's history
type Workstream struct {
	ID        string    `bson:"_id" json:"id"`
	AgentID   string    `bson:"agent_id" json:"agent_id"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Query     string    `bson:"query" json:"query"`
	Status    string    `bson:"status" json:"status"`
	Steps     []bson.M  `bson:"steps" json:"steps"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewWorkstreamID returns a fresh ws_<hex> identifier
func NewWorkstreamID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "ws_" + hex.EncodeToString(buf)
}

type WorkstreamRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewWorkstreamRepo(mongoURL, dbName string) (*WorkstreamRepo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	coll := client.Database(dbName).Collection(workstreamsCollection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "agent_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err = coll.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// indexes might already exist
	}

	return &WorkstreamRepo{client: client, coll: coll}, nil
}

func (r *WorkstreamRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *WorkstreamRepo) Upsert(ctx context.Context, ws *Workstream) error {
	now := time.Now().UTC()
	if ws.ID == "" {
		ws.ID = NewWorkstreamID()
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now

	filter := bson.M{"_id": ws.ID}
	update := bson.M{"$set": ws}
	opts := options.Update().SetUpsert(true)

	_, err := r.coll.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *WorkstreamRepo) FindByID(ctx context.Context, id string) (*Workstream, error) {
	var ws Workstream
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ws)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &ws, err
}

func (r *WorkstreamRepo) FindByAgentID(ctx context.Context, agentID string, limit int64) ([]Workstream, error) {
	opts := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"agent_id": agentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var streams []Workstream
	if err := cursor.All(ctx, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

func (r *WorkstreamRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"status": status})
}
