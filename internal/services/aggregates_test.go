package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAverageStore struct {
	mu      sync.Mutex
	values  map[string][]float64
	written map[string]*float64
	meanErr error
	calls   int
}

func newFakeAverageStore() *fakeAverageStore {
	return &fakeAverageStore{values: map[string][]float64{}, written: map[string]*float64{}}
}

func (s *fakeAverageStore) Mean(_ context.Context, collection, field string, id primitive.ObjectID) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.meanErr != nil {
		return 0, false, s.meanErr
	}
	vals := s.values[collection+"."+field+"."+id.Hex()]
	if len(vals) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true, nil
}

func (s *fakeAverageStore) SetBootcampField(_ context.Context, id primitive.ObjectID, field string, value *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[id.Hex()+"."+field] = value
	return nil
}

func (s *fakeAverageStore) get(id primitive.ObjectID, field string) (*float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.written[id.Hex()+"."+field]
	return v, ok
}

func (s *fakeAverageStore) set(key string, vals ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = vals
}

// gatedStore holds the first Mean call open after it has read the children,
// and records how many Mean calls overlap.
type gatedStore struct {
	*fakeAverageStore
	entered chan struct{}
	release chan struct{}
	first   sync.Once

	mu         sync.Mutex
	active     int
	maxOverlap int
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		fakeAverageStore: newFakeAverageStore(),
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (s *gatedStore) Mean(ctx context.Context, collection, field string, id primitive.ObjectID) (float64, bool, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxOverlap {
		s.maxOverlap = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	mean, ok, err := s.fakeAverageStore.Mean(ctx, collection, field, id)
	s.first.Do(func() {
		close(s.entered)
		<-s.release
	})
	return mean, ok, err
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func TestRoundUpToTen(t *testing.T) {
	assert.Equal(t, 200.0, RoundUpToTen(200))
	assert.Equal(t, 120.0, RoundUpToTen(116.66))
	assert.Equal(t, 10.0, RoundUpToTen(0.5))
	assert.Equal(t, 0.0, RoundUpToTen(0))
}

func TestRecomputeAverageCost(t *testing.T) {
	cases := []struct {
		name     string
		tuitions []float64
		want     float64
	}{
		{"exact multiple", []float64{100, 200, 300}, 200},
		{"rounds up", []float64{100, 150, 100}, 120},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeAverageStore()
			id := primitive.NewObjectID()
			store.values["courses.tuition."+id.Hex()] = tc.tuitions

			log, _ := quietLogger()
			m := NewAggregateMaintainer(store, log, nil, 1, 1)

			require.NoError(t, m.Recompute(context.Background(), AverageCost, id))
			got, ok := store.get(id, "averageCost")
			require.True(t, ok)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestRecomputeAverageRatingIsUnrounded(t *testing.T) {
	store := newFakeAverageStore()
	id := primitive.NewObjectID()
	store.values["reviews.rating."+id.Hex()] = []float64{7, 8}

	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 1)

	require.NoError(t, m.Recompute(context.Background(), AverageRating, id))
	got, _ := store.get(id, "averageRating")
	require.NotNil(t, got)
	assert.Equal(t, 7.5, *got)
}

func TestRecomputeEmptySetClearsField(t *testing.T) {
	store := newFakeAverageStore()
	id := primitive.NewObjectID()

	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 1)

	require.NoError(t, m.Recompute(context.Background(), AverageCost, id))
	got, ok := store.get(id, "averageCost")
	assert.True(t, ok)
	assert.Nil(t, got)
}

func TestMaintainerProcessesNotificationsBeforeStop(t *testing.T) {
	store := newFakeAverageStore()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	store.values["courses.tuition."+a.Hex()] = []float64{95}
	store.values["reviews.rating."+b.Hex()] = []float64{4}

	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 2, 8)
	m.Start(context.Background())

	m.NotifyCourseChanged(a)
	m.NotifyReviewChanged(b)
	m.Stop()

	cost, _ := store.get(a, "averageCost")
	rating, _ := store.get(b, "averageRating")
	require.NotNil(t, cost)
	require.NotNil(t, rating)
	assert.Equal(t, 100.0, *cost)
	assert.Equal(t, 4.0, *rating)
}

func TestMaintainerOverflowStillRuns(t *testing.T) {
	store := newFakeAverageStore()
	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 0)
	m.Start(context.Background())

	ids := make([]primitive.ObjectID, 5)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
		m.NotifyCourseChanged(ids[i])
	}
	m.Stop()

	for _, id := range ids {
		_, ok := store.get(id, "averageCost")
		assert.True(t, ok)
	}
}

func TestMaintainerLogsFailures(t *testing.T) {
	store := newFakeAverageStore()
	store.meanErr = errors.New("connection reset")

	log, hook := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 1)
	m.Start(context.Background())
	m.NotifyReviewChanged(primitive.NewObjectID())
	m.Stop()

	require.Eventually(t, func() bool { return len(hook.AllEntries()) == 1 }, time.Second, 10*time.Millisecond)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "averageRating", entry.Data["aggregate"])
}

func TestMaintainerDropsAfterStop(t *testing.T) {
	store := newFakeAverageStore()
	log, hook := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 1)
	m.Start(context.Background())
	m.Stop()

	m.NotifyCourseChanged(primitive.NewObjectID())
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestMaintainerLatestWriteWins(t *testing.T) {
	store := newGatedStore()
	id := primitive.NewObjectID()
	key := "courses.tuition." + id.Hex()
	store.set(key, 100)

	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 4, 8)
	m.Start(context.Background())

	m.NotifyCourseChanged(id)
	<-store.entered

	store.set(key, 100, 300)
	m.NotifyCourseChanged(id)
	m.NotifyCourseChanged(id)
	close(store.release)
	m.Stop()

	got, ok := store.get(id, "averageCost")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, 200.0, *got)
	assert.Equal(t, 1, store.maxOverlap)
	assert.Equal(t, 2, store.calls)
}

func TestMaintainerCoalescesQueuedNotifications(t *testing.T) {
	store := newGatedStore()
	blocker, id := primitive.NewObjectID(), primitive.NewObjectID()
	store.set("courses.tuition."+id.Hex(), 40)

	log, _ := quietLogger()
	m := NewAggregateMaintainer(store, log, nil, 1, 8)
	m.Start(context.Background())

	m.NotifyCourseChanged(blocker)
	<-store.entered
	for i := 0; i < 5; i++ {
		m.NotifyCourseChanged(id)
	}
	close(store.release)
	m.Stop()

	got, _ := store.get(id, "averageCost")
	require.NotNil(t, got)
	assert.Equal(t, 40.0, *got)
	assert.Equal(t, 2, store.calls)
}
