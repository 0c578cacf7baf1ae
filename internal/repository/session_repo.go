package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"prepdeck/internal/model"
)

// SessionRepo archives ended sessions for reporting.
type SessionRepo interface {
	Archive(ctx context.Context, session *model.SessionState) error
	GetArchived(ctx context.Context, id string) (*model.SessionState, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a mongo-backed session archive.
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Archive(ctx context.Context, session *model.SessionState) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts)
	return err
}

func (r *sessionRepo) GetArchived(ctx context.Context, id string) (*model.SessionState, error) {
	var session model.SessionState
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}
