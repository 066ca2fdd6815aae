package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/devcamper/bootcamp-api/internal/observability"
)

// AveragesRepo computes child means and writes them onto bootcamps.
type AveragesRepo struct {
	db   *mongo.Database
	prom *observability.Prom
}

func NewAveragesRepo(db *mongo.Database, prom *observability.Prom) *AveragesRepo {
	return &AveragesRepo{db: db, prom: prom}
}

// Mean averages field over the documents of collection owned by bootcampID.
// ok is false when there are no such documents.
func (r *AveragesRepo) Mean(ctx context.Context, collection, field string, bootcampID primitive.ObjectID) (mean float64, ok bool, err error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bootcamp": bootcampID}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$bootcamp",
			"mean": bson.M{"$avg": "$" + field},
			"n":    bson.M{"$sum": 1},
		}}},
	}

	var rows []struct {
		Mean *float64 `bson:"mean"`
		N    int      `bson:"n"`
	}
	err = r.prom.ObserveDB(collection+".mean", func() error {
		cur, err := r.db.Collection(collection).Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		return cur.All(ctx, &rows)
	})
	if err != nil {
		return 0, false, fmt.Errorf("mean %s.%s: %w", collection, field, err)
	}
	if len(rows) == 0 || rows[0].N == 0 || rows[0].Mean == nil {
		return 0, false, nil
	}
	return *rows[0].Mean, true, nil
}

// SetBootcampField sets field to value, or unsets it when value is nil.
func (r *AveragesRepo) SetBootcampField(ctx context.Context, bootcampID primitive.ObjectID, field string, value *float64) error {
	update := bson.M{"$unset": bson.M{field: ""}}
	if value != nil {
		update = bson.M{"$set": bson.M{field: *value}}
	}
	return r.prom.ObserveDB("bootcamps.set_"+field, func() error {
		_, err := r.db.Collection(BootcampsCollection).UpdateOne(ctx, bson.M{"_id": bootcampID}, update)
		return err
	})
}
