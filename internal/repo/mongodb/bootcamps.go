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

type BootcampsRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewBootcampsRepo(db *mongo.Database, prom *observability.Prom) *BootcampsRepo {
	return &BootcampsRepo{coll: db.Collection(BootcampsCollection), prom: prom}
}

func (r *BootcampsRepo) Create(ctx context.Context, b *models.Bootcamp) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Photo == "" {
		b.Photo = models.DefaultPhoto
	}
	return mapErr(r.prom.ObserveDB("bootcamps.insert", func() error {
		_, err := r.coll.InsertOne(ctx, b)
		return err
	}))
}

func (r *BootcampsRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	var b models.Bootcamp
	err := r.prom.ObserveDB("bootcamps.find_by_id", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

// Summary loads the name and description inlined on course and review reads.
func (r *BootcampsRepo) Summary(ctx context.Context, id primitive.ObjectID) (*models.BootcampSummary, error) {
	var s models.BootcampSummary
	err := r.prom.ObserveDB("bootcamps.summary", func() error {
		return r.coll.FindOne(ctx,
			bson.M{"_id": id},
			options.FindOne().SetProjection(bson.M{"name": 1, "description": 1}),
		).Decode(&s)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *BootcampsRepo) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var n int64
	err := r.prom.ObserveDB("bootcamps.count_by_user", func() (err error) {
		n, err = r.coll.CountDocuments(ctx, bson.M{"user": userID})
		return err
	})
	return n, err
}

func (r *BootcampsRepo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Bootcamp, error) {
	var b models.Bootcamp
	err := r.prom.ObserveDB("bootcamps.update", func() error {
		return r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&b)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *BootcampsRepo) SetPhoto(ctx context.Context, id primitive.ObjectID, name string) error {
	var res *mongo.UpdateResult
	err := r.prom.ObserveDB("bootcamps.set_photo", func() (err error) {
		res, err = r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"photo": name}})
		return err
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BootcampsRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	var res *mongo.DeleteResult
	err := r.prom.ObserveDB("bootcamps.delete", func() (err error) {
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

// WithinRadius returns bootcamps whose location lies in the spherical cap of
// radius radians around (lng, lat).
func (r *BootcampsRepo) WithinRadius(ctx context.Context, lng, lat, radius float64) ([]models.Bootcamp, error) {
	filter := bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lng, lat}, radius},
			},
		},
	}

	out := make([]models.Bootcamp, 0)
	err := r.prom.ObserveDB("bootcamps.within_radius", func() error {
		cur, err := r.coll.Find(ctx, filter)
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
