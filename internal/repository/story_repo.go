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

// StoryRepo persists stories. Status changes go through conditional updates
// keyed on the current status, so concurrent callers cannot both win.
// Lookups and transitions return (nil, nil) when nothing matched.
type StoryRepo interface {
	Create(ctx context.Context, story *model.Story) error
	GetByID(ctx context.Context, id string) (*model.Story, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.Story, error)
	ListByStatus(ctx context.Context, status model.StoryStatus) ([]*model.Story, error)

	// StartVoting moves pending -> voting and stamps the start time
	StartVoting(ctx context.Context, id string, at time.Time) (*model.Story, error)
	// AddVote bumps the tally and records userID as counted, only while the
	// story is voting and userID is not yet counted
	AddVote(ctx context.Context, id, userID string, value int) (bool, error)
	// Reveal moves voting -> completed with the rounded mean of the tally.
	// Requires at least one counted vote.
	Reveal(ctx context.Context, id string, at time.Time) (*model.Story, error)
	// Expire moves voting -> completed without an estimate
	Expire(ctx context.Context, id string, at time.Time) (*model.Story, error)
	// MarkAllVoted stamps allVotedAt once per round. Only the first caller
	// gets true.
	MarkAllVoted(ctx context.Context, id string, at time.Time) (bool, error)

	Delete(ctx context.Context, id string) error
}

type storyRepo struct {
	collection *mongo.Collection
}

// NewStoryRepo creates a new story repository
func NewStoryRepo(db *mongo.Database) StoryRepo {
	return &storyRepo{
		collection: db.Collection("stories"),
	}
}

func (r *storyRepo) Create(ctx context.Context, story *model.Story) error {
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, story)
	return err
}

func (r *storyRepo) GetByID(ctx context.Context, id string) (*model.Story, error) {
	var story model.Story
	err := r.collection.FindOne(ctx, bson.M{"storyId": id}).Decode(&story)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *storyRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Story, error) {
	return r.find(ctx, bson.M{"sessionId": sessionID})
}

func (r *storyRepo) ListByStatus(ctx context.Context, status model.StoryStatus) ([]*model.Story, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *storyRepo) find(ctx context.Context, filter bson.M) ([]*model.Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stories := []*model.Story{}
	if err = cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *storyRepo) StartVoting(ctx context.Context, id string, at time.Time) (*model.Story, error) {
	filter := bson.M{"storyId": id, "status": model.StoryPending}
	update := bson.M{"$set": bson.M{
		"status":          model.StoryVoting,
		"votingStartedAt": at,
		"voteCount":       0,
		"voteSum":         0,
		"voterIds":        bson.A{},
	}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *storyRepo) AddVote(ctx context.Context, id, userID string, value int) (bool, error) {
	filter := bson.M{
		"storyId":  id,
		"status":   model.StoryVoting,
		"voterIds": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$inc":  bson.M{"voteCount": 1, "voteSum": value},
		"$push": bson.M{"voterIds": userID},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *storyRepo) Reveal(ctx context.Context, id string, at time.Time) (*model.Story, error) {
	filter := bson.M{
		"storyId":   id,
		"status":    model.StoryVoting,
		"voteCount": bson.M{"$gte": 1},
	}
	// Pipeline update so the estimate is computed from the same document
	// state the status check matched against. $round is half-to-even, so
	// round half-up is spelled floor(mean + 0.5).
	mean := bson.D{{Key: "$divide", Value: bson.A{"$voteSum", "$voteCount"}}}
	estimate := bson.D{{Key: "$toInt", Value: bson.D{{Key: "$floor", Value: bson.D{{Key: "$add", Value: bson.A{mean, 0.5}}}}}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "status", Value: model.StoryCompleted},
			{Key: "completedBy", Value: model.CompletedByReveal},
			{Key: "completedAt", Value: at},
			{Key: "finalEstimate", Value: estimate},
		}}},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *storyRepo) Expire(ctx context.Context, id string, at time.Time) (*model.Story, error) {
	filter := bson.M{"storyId": id, "status": model.StoryVoting}
	update := bson.M{"$set": bson.M{
		"status":      model.StoryCompleted,
		"completedBy": model.CompletedByTimeout,
		"completedAt": at,
	}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *storyRepo) MarkAllVoted(ctx context.Context, id string, at time.Time) (bool, error) {
	// a nil match covers both a missing and a null allVotedAt
	filter := bson.M{"storyId": id, "status": model.StoryVoting, "allVotedAt": nil}
	update := bson.M{"$set": bson.M{"allVotedAt": at}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *storyRepo) findOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*model.Story, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var story model.Story
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&story)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *storyRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"storyId": id})
	return err
}
