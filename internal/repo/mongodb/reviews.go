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

type ReviewsRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewReviewsRepo(db *mongo.Database, prom *observability.Prom) *ReviewsRepo {
	return &ReviewsRepo{coll: db.Collection(ReviewsCollection), prom: prom}
}

// Create returns ErrDuplicate when the user already reviewed the bootcamp.
func (r *ReviewsRepo) Create(ctx context.Context, rv *models.Review) error {
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	return mapErr(r.prom.ObserveDB("reviews.insert", func() error {
		_, err := r.coll.InsertOne(ctx, rv)
		return err
	}))
}

func (r *ReviewsRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var rv models.Review
	err := r.prom.ObserveDB("reviews.find_by_id", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rv)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &rv, nil
}

func (r *ReviewsRepo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Review, error) {
	var rv models.Review
	err := r.prom.ObserveDB("reviews.update", func() error {
		return r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&rv)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &rv, nil
}

func (r *ReviewsRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	var res *mongo.DeleteResult
	err := r.prom.ObserveDB("reviews.delete", func() (err error) {
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

func (r *ReviewsRepo) DeleteByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) error {
	return r.prom.ObserveDB("reviews.delete_many", func() error {
		_, err := r.coll.DeleteMany(ctx, bson.M{"bootcamp": bootcampID})
		return err
	})
}
