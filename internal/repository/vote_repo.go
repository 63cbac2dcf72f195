package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"planningpoker/internal/model"
)

// ErrDuplicateVote is returned by Insert when (storyId, userId) already exists
var ErrDuplicateVote = errors.New("vote already exists for story and user")

// VoteRepo persists one vote per (story, user)
type VoteRepo interface {
	Insert(ctx context.Context, vote *model.Vote) error
	FindByStoryAndUser(ctx context.Context, storyID, userID string) (*model.Vote, error)
	ListByStory(ctx context.Context, storyID string) ([]*model.Vote, error)
	Delete(ctx context.Context, voteID string) error
	DeleteByStory(ctx context.Context, storyID string) (int64, error)
}

type voteRepo struct {
	collection *mongo.Collection
}

// NewVoteRepo creates a new vote repository
func NewVoteRepo(db *mongo.Database) VoteRepo {
	return &voteRepo{
		collection: db.Collection("votes"),
	}
}

func (r *voteRepo) Insert(ctx context.Context, vote *model.Vote) error {
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, vote)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *voteRepo) FindByStoryAndUser(ctx context.Context, storyID, userID string) (*model.Vote, error) {
	var vote model.Vote
	err := r.collection.FindOne(ctx, bson.M{"storyId": storyID, "userId": userID}).Decode(&vote)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func (r *voteRepo) ListByStory(ctx context.Context, storyID string) ([]*model.Vote, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"storyId": storyID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	votes := []*model.Vote{}
	if err = cursor.All(ctx, &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *voteRepo) Delete(ctx context.Context, voteID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"voteId": voteID})
	return err
}

func (r *voteRepo) DeleteByStory(ctx context.Context, storyID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"storyId": storyID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
