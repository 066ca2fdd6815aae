package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/devcamper/bootcamp-api/internal/cache"
	"github.com/devcamper/bootcamp-api/internal/models"
)

var ErrAddressNotFound = errors.New("address could not be geocoded")

// Geocoder resolves a free-form address or postal code to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.GeoPoint, error)
}

// MapQuestGeocoder talks to the MapQuest geocoding v1 address endpoint.
type MapQuestGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMapQuestGeocoder(baseURL, apiKey string, client *http.Client) *MapQuestGeocoder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MapQuestGeocoder{baseURL: baseURL, apiKey: apiKey, client: client}
}

type mapQuestResponse struct {
	Info struct {
		StatusCode int      `json:"statuscode"`
		Messages   []string `json:"messages"`
	} `json:"info"`
	Results []struct {
		Locations []struct {
			Street     string `json:"street"`
			City       string `json:"adminArea5"`
			State      string `json:"adminArea3"`
			Country    string `json:"adminArea1"`
			PostalCode string `json:"postalCode"`
			LatLng     struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"latLng"`
		} `json:"locations"`
	} `json:"results"`
}

func (g *MapQuestGeocoder) Geocode(ctx context.Context, address string) (*models.GeoPoint, error) {
	q := url.Values{}
	q.Set("key", g.apiKey)
	q.Set("location", address)
	q.Set("maxResults", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	var body mapQuestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("geocode response: %w", err)
	}
	if body.Info.StatusCode != 0 {
		return nil, fmt.Errorf("geocode response: status %d %s", body.Info.StatusCode, strings.Join(body.Info.Messages, "; "))
	}
	if len(body.Results) == 0 || len(body.Results[0].Locations) == 0 {
		return nil, ErrAddressNotFound
	}

	loc := body.Results[0].Locations[0]
	parts := make([]string, 0, 4)
	for _, p := range []string{loc.Street, loc.City, strings.TrimSpace(loc.State + " " + loc.PostalCode), loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return &models.GeoPoint{
		Type:             "Point",
		Coordinates:      []float64{loc.LatLng.Lng, loc.LatLng.Lat},
		FormattedAddress: strings.Join(parts, ", "),
		Street:           loc.Street,
		City:             loc.City,
		State:            loc.State,
		Zipcode:          loc.PostalCode,
		Country:          loc.Country,
	}, nil
}

// CachedGeocoder memoizes lookups and collapses concurrent identical ones.
// Cache failures are logged and fall through to the upstream geocoder.
// The shared upstream call is detached from any single caller, so one
// cancelled request does not fail the others waiting on it.
type CachedGeocoder struct {
	next    Geocoder
	cache   cache.Cache
	ttl     time.Duration
	timeout time.Duration
	log     *logrus.Logger
	group   singleflight.Group
}

func NewCachedGeocoder(next Geocoder, c cache.Cache, ttl time.Duration, log *logrus.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: c, ttl: ttl, timeout: 10 * time.Second, log: log}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*models.GeoPoint, error) {
	key := "geocode:" + strings.ToLower(strings.TrimSpace(address))

	var point models.GeoPoint
	ok, err := g.cache.Get(ctx, key, &point)
	if err != nil {
		g.log.WithFields(logrus.Fields{"key": key}).WithError(err).Warn("geocode cache read failed")
	}
	if ok && err == nil {
		return &point, nil
	}

	ch := g.group.DoChan(key, func() (any, error) {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		p, err := g.next.Geocode(uctx, address)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Set(uctx, key, p, g.ttl); err != nil {
			g.log.WithFields(logrus.Fields{"key": key}).WithError(err).Warn("geocode cache write failed")
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.GeoPoint), nil
	}
}
