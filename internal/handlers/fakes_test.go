package handlers_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/query"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

// applySet mimics a $set by round-tripping doc through bson.
func applySet(doc any, set bson.M) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range set {
		m[k] = v
	}
	raw, err = bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, doc)
}

type fakeBootcamps struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Bootcamp

	radius  []float64
	nearby  []models.Bootcamp
	updates int
}

func newFakeBootcamps() *fakeBootcamps {
	return &fakeBootcamps{byID: map[primitive.ObjectID]*models.Bootcamp{}}
}

func (f *fakeBootcamps) put(b models.Bootcamp) *models.Bootcamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	f.byID[b.ID] = &b
	return &b
}

func (f *fakeBootcamps) get(id primitive.ObjectID) (models.Bootcamp, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return models.Bootcamp{}, false
	}
	return *b, true
}

func (f *fakeBootcamps) Create(_ context.Context, b *models.Bootcamp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.Name == b.Name {
			return mongodb.ErrDuplicate
		}
	}
	b.ID = primitive.NewObjectID()
	b.CreatedAt = time.Now().UTC()
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

func (f *fakeBootcamps) FindByID(_ context.Context, id primitive.ObjectID) (*models.Bootcamp, error) {
	b, ok := f.get(id)
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	return &b, nil
}

func (f *fakeBootcamps) Summary(_ context.Context, id primitive.ObjectID) (*models.BootcampSummary, error) {
	b, ok := f.get(id)
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	return &models.BootcampSummary{ID: b.ID, Name: b.Name, Description: b.Description}, nil
}

func (f *fakeBootcamps) CountByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.byID {
		if b.User == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBootcamps) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Bootcamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	if err := applySet(b, set); err != nil {
		return nil, err
	}
	f.updates++
	cp := *b
	return &cp, nil
}

func (f *fakeBootcamps) SetPhoto(ctx context.Context, id primitive.ObjectID, name string) error {
	_, err := f.Update(ctx, id, bson.M{"photo": name})
	return err
}

func (f *fakeBootcamps) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return mongodb.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeBootcamps) WithinRadius(_ context.Context, lng, lat, radius float64) ([]models.Bootcamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radius = []float64{lng, lat, radius}
	return append([]models.Bootcamp{}, f.nearby...), nil
}

type fakeCourses struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Course
}

func newFakeCourses() *fakeCourses {
	return &fakeCourses{byID: map[primitive.ObjectID]*models.Course{}}
}

func (f *fakeCourses) put(c models.Course) *models.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	f.byID[c.ID] = &c
	return &c
}

func (f *fakeCourses) Create(_ context.Context, c *models.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCourses) FindByID(_ context.Context, id primitive.ObjectID) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCourses) ListByBootcamp(_ context.Context, bootcampID primitive.ObjectID) ([]models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Course, 0)
	for _, c := range f.byID {
		if c.Bootcamp == bootcampID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeCourses) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	if err := applySet(c, set); err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCourses) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return mongodb.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCourses) DeleteByBootcamp(_ context.Context, bootcampID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.byID {
		if c.Bootcamp == bootcampID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeCourses) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeReviews struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Review
}

func newFakeReviews() *fakeReviews {
	return &fakeReviews{byID: map[primitive.ObjectID]*models.Review{}}
}

func (f *fakeReviews) put(r models.Review) *models.Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	f.byID[r.ID] = &r
	return &r
}

func (f *fakeReviews) Create(_ context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.Bootcamp == r.Bootcamp && other.User == r.User {
			return mongodb.ErrDuplicate
		}
	}
	r.ID = primitive.NewObjectID()
	r.CreatedAt = time.Now().UTC()
	cp := *r
	f.byID[r.ID] = &cp
	return nil
}

func (f *fakeReviews) FindByID(_ context.Context, id primitive.ObjectID) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	if err := applySet(r, set); err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return mongodb.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeReviews) DeleteByBootcamp(_ context.Context, bootcampID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.byID {
		if r.Bootcamp == bootcampID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeReviews) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[primitive.ObjectID]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.Email == u.Email {
			return mongodb.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongodb.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, mongodb.ErrNotFound
	}
	if err := applySet(u, set); err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return mongodb.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type listCall struct {
	collection string
	query      query.Query
	opts       query.ListOptions
}

type fakeLister struct {
	mu    sync.Mutex
	calls []listCall
	err   error
}

func (f *fakeLister) List(_ context.Context, collection string, q query.Query, opts query.ListOptions) (query.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, listCall{collection: collection, query: q, opts: opts})
	if f.err != nil {
		return query.Page{}, f.err
	}
	return query.Page{Success: true, Data: []bson.M{}}, nil
}

func (f *fakeLister) last() listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeNotifier struct {
	mu      sync.Mutex
	courses []primitive.ObjectID
	reviews []primitive.ObjectID
}

func (f *fakeNotifier) NotifyCourseChanged(id primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = append(f.courses, id)
}

func (f *fakeNotifier) NotifyReviewChanged(id primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, id)
}

type fakeGeocoder struct {
	point *models.GeoPoint
	err   error
	calls []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*models.GeoPoint, error) {
	f.calls = append(f.calls, address)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.point
	return &p, nil
}

type fakePhotos struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (f *fakePhotos) Save(name string, src io.Reader) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[name] = b
	return nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var errStorage = errors.New("disk full")
