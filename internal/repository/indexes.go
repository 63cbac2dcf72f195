package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. The unique
// (storyId, userId) index on votes is what makes a second vote fail.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"sessions": {
			{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"stories": {
			{Keys: bson.D{{Key: "storyId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"votes": {
			{Keys: bson.D{{Key: "voteId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "storyId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}
