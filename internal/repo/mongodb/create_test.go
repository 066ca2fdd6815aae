package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/devcamper/bootcamp-api/internal/models"
)

func TestCreateStampsIDAndCreatedAt(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	cases := []struct {
		name   string
		create func(mt *mtest.T) (ok bool, created time.Time)
	}{
		{"users", func(mt *mtest.T) (bool, time.Time) {
			u := &models.User{Name: "Ann", Email: "ann@example.com", Role: models.RoleUser}
			require.NoError(mt, NewUsersRepo(mt.DB, nil).Create(context.Background(), u))
			return !u.ID.IsZero(), u.CreatedAt
		}},
		{"bootcamps", func(mt *mtest.T) (bool, time.Time) {
			b := &models.Bootcamp{Name: "Devworks"}
			require.NoError(mt, NewBootcampsRepo(mt.DB, nil).Create(context.Background(), b))
			return !b.ID.IsZero(), b.CreatedAt
		}},
		{"courses", func(mt *mtest.T) (bool, time.Time) {
			c := &models.Course{Title: "Go"}
			require.NoError(mt, NewCoursesRepo(mt.DB, nil).Create(context.Background(), c))
			return !c.ID.IsZero(), c.CreatedAt
		}},
		{"reviews", func(mt *mtest.T) (bool, time.Time) {
			rv := &models.Review{Title: "Great", Rating: 8}
			require.NoError(mt, NewReviewsRepo(mt.DB, nil).Create(context.Background(), rv))
			return !rv.ID.IsZero(), rv.CreatedAt
		}},
	}

	for _, tc := range cases {
		mt.Run(tc.name, func(mt *mtest.T) {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
			before := time.Now().UTC().Add(-time.Second)

			hasID, created := tc.create(mt)

			assert.True(mt, hasID)
			assert.True(mt, created.After(before), "createdAt not stamped: %v", created)
			evt := mt.GetStartedEvent()
			require.NotNil(mt, evt)
			assert.Equal(mt, "insert", evt.CommandName)
		})
	}
}

func TestCreateKeepsExistingCreatedAt(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("users", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		u := &models.User{Name: "Ann", Email: "ann@example.com", CreatedAt: at}

		require.NoError(mt, NewUsersRepo(mt.DB, nil).Create(context.Background(), u))
		assert.Equal(mt, at, u.CreatedAt)
	})
}
