package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "users"

type mongoDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Record record             `bson:",inline"`
}

// MongoRepository stores users in the "users" collection.
type MongoRepository struct {
	coll    *mongo.Collection
	sealer  Sealer
	nowFunc func() time.Time
}

// NewMongoRepository binds a repository to db.
func NewMongoRepository(db *mongo.Database, sealer Sealer) *MongoRepository {
	return &MongoRepository{
		coll:    db.Collection(collectionName),
		sealer:  sealer,
		nowFunc: time.Now,
	}
}

// EnsureIndexes creates the unique email index and the partial unique
// googleId index. It is safe to call on every start.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys: bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("google_id_unique").
				SetPartialFilterExpression(bson.M{"googleId": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, u User) (User, error) {
	now := r.nowFunc().UTC().Truncate(time.Millisecond)
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	rec, err := toRecord(u, r.sealer)
	if err != nil {
		return User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, mongoDocument{Record: rec})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ErrEmailExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return User{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return rec.toUser(oid.Hex(), r.sealer)
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": NormalizeEmail(email), "isActive": true})
}

func (r *MongoRepository) FindByGoogleID(ctx context.Context, subject string) (User, error) {
	if subject == "" {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"googleId": subject, "isActive": true})
}

func (r *MongoRepository) UpdateTokens(ctx context.Context, id string, tokens OAuthTokens) error {
	access, refresh, err := sealTokens(r.sealer, tokens)
	if err != nil {
		return err
	}
	return r.updateByID(ctx, id, bson.M{
		"accessToken":  access,
		"refreshToken": refresh,
		"tokenExpiry":  tokens.Expiry.UTC(),
	})
}

func (r *MongoRepository) Deactivate(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{"isActive": false})
}

func (r *MongoRepository) updateByID(ctx context.Context, id string, set bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	set["updatedAt"] = r.nowFunc().UTC()

	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var doc mongoDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.Record.toUser(doc.ID.Hex(), r.sealer)
}
