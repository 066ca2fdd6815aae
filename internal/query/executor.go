package query

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/devcamper/bootcamp-api/internal/observability"
)

// Collection is the slice of *mongo.Collection the executor needs.
type Collection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// Expansion inlines documents of another collection into each result.
// With Many unset the lookup is a reference (LocalField holds the foreign
// _id) and the result is unwound to a single document or null.
type Expansion struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	Fields       []string
	Many         bool
}

type ListOptions struct {
	// Scope is ANDed onto the client filter and wins on conflicting fields.
	Scope  bson.M
	Expand []Expansion
	// Hidden fields are never returned, even when selected.
	Hidden []string
}

type Page struct {
	Success    bool       `json:"success"`
	Count      int        `json:"count"`
	Total      int64      `json:"total"`
	Pagination Pagination `json:"pagination"`
	Data       []bson.M   `json:"data"`
}

type Executor struct {
	collection func(name string) Collection
	prom       *observability.Prom
}

func NewExecutor(db *mongo.Database, prom *observability.Prom) *Executor {
	return &Executor{
		collection: func(name string) Collection { return db.Collection(name) },
		prom:       prom,
	}
}

// NewExecutorWith builds an executor over an arbitrary collection source.
func NewExecutorWith(collection func(name string) Collection, prom *observability.Prom) *Executor {
	return &Executor{collection: collection, prom: prom}
}

// List runs q against the named collection. It never writes.
func (e *Executor) List(ctx context.Context, name string, q Query, opts ListOptions) (Page, error) {
	coll := e.collection(name)
	filter := MatchFilter(q, opts)
	pipeline := BuildPipeline(q, opts)

	var (
		total int64
		docs  []bson.M
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.prom.ObserveDB(name+".count", func() error {
			n, err := coll.CountDocuments(gctx, filter)
			total = n
			return err
		})
	})
	g.Go(func() error {
		return e.prom.ObserveDB(name+".list", func() error {
			cur, err := coll.Aggregate(gctx, pipeline)
			if err != nil {
				return err
			}
			defer cur.Close(gctx)
			return cur.All(gctx, &docs)
		})
	})
	if err := g.Wait(); err != nil {
		return Page{}, fmt.Errorf("list %s: %w", name, err)
	}

	if docs == nil {
		docs = make([]bson.M, 0)
	}
	for _, d := range docs {
		renameIDs(d)
	}

	return Page{
		Success:    true,
		Count:      len(docs),
		Total:      total,
		Pagination: Paginate(q.Page, q.Limit, total),
		Data:       docs,
	}, nil
}

// MatchFilter combines the translated filter with the scope.
func MatchFilter(q Query, opts ListOptions) bson.M {
	filter := q.Filter.BSON()
	for k, v := range opts.Scope {
		filter[k] = v
	}
	return filter
}

// BuildPipeline renders match, lookups, sort, skip, limit and projection.
// Projection comes last so that sort keys outside the selection still apply.
func BuildPipeline(q Query, opts ListOptions) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: MatchFilter(q, opts)}},
	}

	for _, x := range opts.Expand {
		pipeline = append(pipeline, lookupStages(x)...)
	}

	if sortDoc := q.SortBSON(); len(sortDoc) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortDoc}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$skip", Value: q.Skip()}},
		bson.D{{Key: "$limit", Value: int64(q.Limit)}},
	)

	if proj := projection(q.Select, opts.Hidden); len(proj) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: proj}})
	}
	return pipeline
}

func lookupStages(x Expansion) []bson.D {
	local := x.LocalField
	foreign := x.ForeignField
	if local == "" {
		local = "_id"
	}
	if foreign == "" {
		foreign = "_id"
	}

	sub := bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{"$" + foreign, "$$ref"}},
		}}}}},
	}
	if len(x.Fields) > 0 {
		proj := bson.D{}
		for _, f := range x.Fields {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		sub = append(sub, bson.D{{Key: "$project", Value: proj}})
	}

	stages := []bson.D{{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: x.From},
		{Key: "let", Value: bson.D{{Key: "ref", Value: "$" + local}}},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: x.As},
	}}}}

	if !x.Many {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + x.As},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}})
	}
	return stages
}

func projection(selected, hidden []string) bson.D {
	isHidden := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		isHidden[h] = true
	}

	if len(selected) > 0 {
		proj := bson.D{}
		for _, f := range selected {
			if !isHidden[f] {
				proj = append(proj, bson.E{Key: f, Value: 1})
			}
		}
		if len(proj) > 0 {
			return proj
		}
		// everything selected was hidden; fall back to the exclusion form
	}

	proj := bson.D{}
	for _, h := range hidden {
		proj = append(proj, bson.E{Key: h, Value: 0})
	}
	return proj
}

// renameIDs rewrites "_id" keys as "id" so list documents match the JSON
// shape of the typed models.
func renameIDs(doc bson.M) {
	if id, ok := doc["_id"]; ok {
		doc["id"] = id
		delete(doc, "_id")
	}
	for _, v := range doc {
		switch nested := v.(type) {
		case bson.M:
			renameIDs(nested)
		case bson.A:
			for _, item := range nested {
				if m, ok := item.(bson.M); ok {
					renameIDs(m)
				}
			}
		}
	}
}
