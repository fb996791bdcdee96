package identity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepository implements AccountRepository using MongoDB
type MongoAccountRepository struct {
	col *mongo.Collection
}

// NewMongoAccountRepository creates a new repository for the given collection
func NewMongoAccountRepository(col *mongo.Collection) *MongoAccountRepository {
	return &MongoAccountRepository{col: col}
}

// EnsureIndexes makes email unique and SSO subjects unique where present.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "subject", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	return err
}

func (r *MongoAccountRepository) Create(ctx context.Context, a *Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (r *MongoAccountRepository) getOne(ctx context.Context, filter bson.M) (*Account, error) {
	var a Account
	if err := r.col.FindOne(ctx, filter).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getOne(ctx, bson.M{"email": email})
}

func (r *MongoAccountRepository) GetBySubject(ctx context.Context, subject string) (*Account, error) {
	return r.getOne(ctx, bson.M{"subject": subject})
}

func (r *MongoAccountRepository) LinkSubject(ctx context.Context, id, subject string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"subject":   subject,
		"updatedAt": time.Now().UTC(),
	}})
	return err
}
