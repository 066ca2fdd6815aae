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

type CoursesRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewCoursesRepo(db *mongo.Database, prom *observability.Prom) *CoursesRepo {
	return &CoursesRepo{coll: db.Collection(CoursesCollection), prom: prom}
}

func (r *CoursesRepo) Create(ctx context.Context, c *models.Course) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return mapErr(r.prom.ObserveDB("courses.insert", func() error {
		_, err := r.coll.InsertOne(ctx, c)
		return err
	}))
}

func (r *CoursesRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Course, error) {
	var c models.Course
	err := r.prom.ObserveDB("courses.find_by_id", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *CoursesRepo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Course, error) {
	var c models.Course
	err := r.prom.ObserveDB("courses.update", func() error {
		return r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&c)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *CoursesRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	var res *mongo.DeleteResult
	err := r.prom.ObserveDB("courses.delete", func() (err error) {
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

func (r *CoursesRepo) DeleteByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) error {
	return r.prom.ObserveDB("courses.delete_many", func() error {
		_, err := r.coll.DeleteMany(ctx, bson.M{"bootcamp": bootcampID})
		return err
	})
}

func (r *CoursesRepo) ListByBootcamp(ctx context.Context, bootcampID primitive.ObjectID) ([]models.Course, error) {
	out := make([]models.Course, 0)
	err := r.prom.ObserveDB("courses.list_by_bootcamp", func() error {
		cur, err := r.coll.Find(ctx, bson.M{"bootcamp": bootcampID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		return cur.All(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
