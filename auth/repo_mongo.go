package auth

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const countersCollection = "counters"

type mongoRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

type dbAccount struct {
	ID           int64  `bson:"_id"`
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
}

type counter struct {
	Seq int64 `bson:"seq"`
}

// NewMongoRepository returns a Repository backed by c. It creates a unique
// index on email, and ids come from a sequence in the counters collection of
// the same database.
func NewMongoRepository(ctx context.Context, c *mongo.Collection) (Repository, error) {
	_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create email index")
	}

	return &mongoRepository{
		collection: c,
		counters:   c.Database().Collection(countersCollection),
	}, nil
}

func (m *mongoRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var a dbAccount
	sr := m.collection.FindOne(ctx, bson.M{"email": email})

	if sr.Err() == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}

	if err := sr.Decode(&a); err != nil {
		return nil, errors.WithStack(err)
	}

	acc := accountFromDBAccount(a)
	return &acc, nil
}

func (m *mongoRepository) Store(ctx context.Context, acc *Account) error {
	id, err := m.nextID(ctx)
	if err != nil {
		return err
	}

	dba := dbAccountFromAccount(acc)
	dba.ID = int64(id)
	if _, err := m.collection.InsertOne(ctx, &dba); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return errors.WithStack(err)
	}

	acc.ID = id
	return nil
}

func (m *mongoRepository) FindAll(ctx context.Context) ([]Account, error) {
	cur, err := m.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var docs []dbAccount
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.WithStack(err)
	}

	accounts := make([]Account, 0, len(docs))
	for _, d := range docs {
		accounts = append(accounts, accountFromDBAccount(d))
	}
	return accounts, nil
}

func (m *mongoRepository) nextID(ctx context.Context) (ID, error) {
	var c counter
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": m.collection.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate account id")
	}
	return ID(c.Seq), nil
}

func dbAccountFromAccount(a *Account) dbAccount {
	return dbAccount{int64(a.ID), a.Username, a.Email, a.PasswordHash}
}

func accountFromDBAccount(a dbAccount) Account {
	return Account{ID(a.ID), a.Username, a.Email, a.PasswordHash}
}
