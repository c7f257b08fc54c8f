// Package spawnlog records remote spawn attempts into MongoDB for
// audit, adapted from a Mongo client wrapper.
package spawnlog

import (
	"context"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/config"
	"github.com/phuhao00/actorcore/help"
)

// entry is the document shape written for every remote spawn attempt.
// EntryID is a Snowflake id from help.GenerateUniqueID, not a Mongo
// ObjectID. It is generated inside RecordSpawn and is not carried in the
// spawn reply frame.
type entry struct {
	EntryID  uint64    `bson:"entry_id"`
	Node     string    `bson:"node"`
	TypeName string    `bson:"type_name"`
	OK       bool      `bson:"ok"`
	Detail   string    `bson:"detail"`
	LoggedAt time.Time `bson:"logged_at"`
}

// Log writes spawn attempts to a Mongo collection. It satisfies
// middleman.SpawnLogger.
type Log struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to Mongo per cfg, mirroring a
// NewMongoClient: URI or host-list, optional replica set and auth.
func New(cfg config.MongoConfig) (*Log, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client()
	switch {
	case cfg.URI != "":
		clientOptions.ApplyURI(cfg.URI)
	case len(cfg.Hosts) > 0:
		clientOptions.SetHosts(cfg.Hosts)
	}
	if cfg.ReplicaSet != "" {
		clientOptions.SetReplicaSet(cfg.ReplicaSet)
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientOptions.SetAuth(options.Credential{
			AuthSource: cfg.AuthSource,
			Username:   cfg.Username,
			Password:   cfg.Password,
		})
	}
	if cfg.ConnectTimeoutMS > 0 {
		clientOptions.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond)
	}
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	return &Log{client: client, collection: collection}, nil
}

// RecordSpawn writes one audit entry. Failures are swallowed: a down
// audit log must never block or fail a live spawn request.
func (l *Log) RecordSpawn(ctx context.Context, node actor.NodeID, typeName string, ok bool, detail string) {
	buf := actor.EncodeNodeID(node)
	_, _ = l.collection.InsertOne(ctx, entry{
		EntryID:  help.GenerateUniqueID(),
		Node:     hex.EncodeToString(buf[:]),
		TypeName: typeName,
		OK:       ok,
		Detail:   detail,
		LoggedAt: time.Now(),
	})
}

// Close disconnects the underlying Mongo client.
func (l *Log) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}
