package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"prepdeck/internal/model"
)

// EvaluationRepo is the append-only event log of evaluation results, keyed
// by sessionId+seq.
type EvaluationRepo interface {
	Append(ctx context.Context, result *model.EvaluationResult) error
	ListBySession(ctx context.Context, sessionID string) ([]*model.EvaluationResult, error)
}

type evaluationRepo struct {
	collection *mongo.Collection
}

// NewEvaluationRepo creates a mongo-backed evaluation log.
func NewEvaluationRepo(db *mongo.Database) EvaluationRepo {
	return &evaluationRepo{
		collection: db.Collection("evaluations"),
	}
}

func (r *evaluationRepo) Append(ctx context.Context, result *model.EvaluationResult) error {
	_, err := r.collection.InsertOne(ctx, result)
	return err
}

func (r *evaluationRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.EvaluationResult, error) {
	opts := options.Find().SetSort(bson.M{"seq": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []*model.EvaluationResult
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
