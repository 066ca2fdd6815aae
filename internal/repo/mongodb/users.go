package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/observability"
)

type UsersRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: db.Collection(UsersCollection), prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return mapErr(r.prom.ObserveDB("users.insert", func() error {
		_, err := r.coll.InsertOne(ctx, u)
		return err
	}))
}

func (r *UsersRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, "users.find_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "users.find_by_email", bson.M{"email": email})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (*models.User, error) {
	var u models.User
	err := r.prom.ObserveDB(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&u)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	var u models.User
	err := r.prom.ObserveDB("users.update", func() error {
		return r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&u)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	var res *mongo.DeleteResult
	err := r.prom.ObserveDB("users.delete", func() (err error) {
		res, err = r.coll.DeleteOne(ctx, bson.M{"_id": id})
		return err
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
