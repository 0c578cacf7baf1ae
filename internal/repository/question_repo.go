package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"prepdeck/internal/model"
)

// QuestionRepo is the read-only view of the question/rubric bank the engine
// consumes. Mutation happens in the admin surface, outside this core; Create
// methods exist only for the seed tool.
type QuestionRepo interface {
	GetByID(ctx context.Context, id string) (*model.Question, error)
	FindByCriteria(ctx context.Context, domain string, difficulty model.Difficulty, excludeIDs []string) ([]*model.Question, error)
	GetRubric(ctx context.Context, questionID string) (*model.Rubric, error)

	Create(ctx context.Context, question *model.Question) error
	CreateRubric(ctx context.Context, rubric *model.Rubric) error
}

type questionRepo struct {
	questions *mongo.Collection
	rubrics   *mongo.Collection
}

// NewQuestionRepo creates a mongo-backed question repository.
func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		questions: db.Collection("questions"),
		rubrics:   db.Collection("rubrics"),
	}
}

func (r *questionRepo) GetByID(ctx context.Context, id string) (*model.Question, error) {
	var question model.Question
	err := r.questions.FindOne(ctx, bson.M{"_id": id}).Decode(&question)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Question not found
		}
		return nil, err
	}
	return &question, nil
}

func (r *questionRepo) FindByCriteria(ctx context.Context, domain string, difficulty model.Difficulty, excludeIDs []string) ([]*model.Question, error) {
	filter := bson.M{
		"domain": domain,
		"active": true,
	}
	if difficulty != "" {
		filter["difficulty"] = difficulty
	}
	if len(excludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludeIDs}
	}

	cursor, err := r.questions.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []*model.Question
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetRubric(ctx context.Context, questionID string) (*model.Rubric, error) {
	var rubric model.Rubric
	err := r.rubrics.FindOne(ctx, bson.M{"question_id": questionID}).Decode(&rubric)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // No rubric authored yet
		}
		return nil, err
	}
	return &rubric, nil
}

func (r *questionRepo) Create(ctx context.Context, question *model.Question) error {
	if question.ID == "" {
		question.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.questions.InsertOne(ctx, question)
	return err
}

func (r *questionRepo) CreateRubric(ctx context.Context, rubric *model.Rubric) error {
	if err := rubric.Validate(); err != nil {
		return err
	}
	if rubric.ID == "" {
		rubric.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.rubrics.InsertOne(ctx, rubric)
	return err
}
