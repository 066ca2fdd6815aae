package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/devcamper/bootcamp-api/internal/handlers"
	"github.com/devcamper/bootcamp-api/internal/models"
	"github.com/devcamper/bootcamp-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testMaxUpload = 1024

type testEnv struct {
	t         *testing.T
	bootcamps *fakeBootcamps
	courses   *fakeCourses
	reviews   *fakeReviews
	users     *fakeUsers
	lister    *fakeLister
	notifier  *fakeNotifier
	geocoder  *fakeGeocoder
	photos    *fakePhotos
	pinger    *fakePinger
	logs      *test.Hook
	tokens    *utils.JWTManager
	passwords *utils.PasswordHasher
	router    *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := utils.NewJWTManager("test-secret", time.Hour)
	require.NoError(t, err)
	log, hook := test.NewNullLogger()

	e := &testEnv{
		t:         t,
		bootcamps: newFakeBootcamps(),
		courses:   newFakeCourses(),
		reviews:   newFakeReviews(),
		users:     newFakeUsers(),
		lister:    &fakeLister{},
		notifier:  &fakeNotifier{},
		geocoder: &fakeGeocoder{point: &models.GeoPoint{
			Type:             "Point",
			Coordinates:      []float64{-71.104028, 42.350846},
			FormattedAddress: "233 Bay State Rd, Boston, MA 02215, US",
			Zipcode:          "02215",
		}},
		photos:    &fakePhotos{saved: map[string][]byte{}},
		pinger:    &fakePinger{},
		logs:      hook,
		tokens:    tokens,
		passwords: utils.NewPasswordHasher(bcrypt.MinCost),
	}

	h := handlers.NewHandler(handlers.Deps{
		Bootcamps:     e.bootcamps,
		Courses:       e.courses,
		Reviews:       e.reviews,
		Users:         e.users,
		Lister:        e.lister,
		Aggregates:    e.notifier,
		Geocoder:      e.geocoder,
		Photos:        e.photos,
		Tokens:        tokens,
		Passwords:     e.passwords,
		DB:            e.pinger,
		Log:           log,
		MaxFileUpload: testMaxUpload,
	})
	e.router = handlers.NewRouter(h)
	return e
}

// login stores a user with role and returns it with a bearer token.
func (e *testEnv) login(role models.Role) (*models.User, string) {
	e.t.Helper()
	u := &models.User{
		ID:    primitive.NewObjectID(),
		Name:  string(role),
		Email: primitive.NewObjectID().Hex() + "@example.com",
		Role:  role,
	}
	require.NoError(e.t, e.users.Create(context.Background(), u))

	tok, err := e.tokens.GenerateJWT(u.ID.Hex(), string(role))
	require.NoError(e.t, err)
	return u, tok
}

type response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
	Token   string          `json:"token"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	e.t.Helper()

	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(e.t, err)
			rdr = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *testEnv) send(req *http.Request, token string) (*httptest.ResponseRecorder, response) {
	e.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}
