// Package request implements the request lifecycle: creation with TTL,
// owner-only close and delete, and geohash-bounded nearby discovery.
package request

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"poolorder/internal/domain/identity"
	"poolorder/internal/domain/request"
	"poolorder/internal/geoindex"
)

// Config bounds request creation and discovery.
type Config struct {
	MinTTL          time.Duration
	MaxTTL          time.Duration
	DefaultTTL      time.Duration
	MinRadiusKm     float64
	MaxRadiusKm     float64
	DefaultRadiusKm float64
	MaxItemLen      int
	MaxPlatformLen  int
	MaxGeoRanges    int
	NearbyLimit     int
}

func (c Config) withDefaults() Config {
	if c.MinTTL == 0 {
		c.MinTTL = 5 * time.Minute
	}
	if c.MaxTTL == 0 {
		c.MaxTTL = 240 * time.Minute
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 60 * time.Minute
	}
	if c.MinRadiusKm == 0 {
		c.MinRadiusKm = 0.5
	}
	if c.MaxRadiusKm == 0 {
		c.MaxRadiusKm = 10
	}
	if c.DefaultRadiusKm == 0 {
		c.DefaultRadiusKm = 1
	}
	if c.MaxItemLen == 0 {
		c.MaxItemLen = 120
	}
	if c.MaxPlatformLen == 0 {
		c.MaxPlatformLen = 60
	}
	if c.MaxGeoRanges == 0 {
		c.MaxGeoRanges = geoindex.DefaultMaxRanges
	}
	if c.NearbyLimit == 0 {
		c.NearbyLimit = 100
	}
	return c
}

// Service is the query and lifecycle surface for requests.
type Service struct {
	store request.Store
	cfg   Config
}

// NewService creates a new request service.
func NewService(store request.Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg.withDefaults()}
}

// Create validates the input, computes the geohash and persists the request
// with the owner auto-joined (memberCount starts at 1).
func (s *Service) Create(ctx context.Context, owner identity.User, item, platform string, lat, lng float64, ttl time.Duration) (*request.Request, error) {
	item = strings.TrimSpace(item)
	platform = strings.TrimSpace(platform)

	if item == "" || len(item) > s.cfg.MaxItemLen {
		return nil, fmt.Errorf("%w: item must be 1-%d characters", request.ErrInvalidArgument, s.cfg.MaxItemLen)
	}
	if platform == "" || len(platform) > s.cfg.MaxPlatformLen {
		return nil, fmt.Errorf("%w: platform must be 1-%d characters", request.ErrInvalidArgument, s.cfg.MaxPlatformLen)
	}
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}
	if ttl < s.cfg.MinTTL || ttl > s.cfg.MaxTTL {
		return nil, fmt.Errorf("%w: ttl must be between %s and %s", request.ErrInvalidArgument, s.cfg.MinTTL, s.cfg.MaxTTL)
	}

	geohash, err := geoindex.Encode(lat, lng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", request.ErrInvalidArgument, err)
	}

	now := time.Now().UTC()
	r := &request.Request{
		ID:               uuid.NewString(),
		Item:             item,
		Platform:         platform,
		Lat:              lat,
		Lng:              lng,
		Geohash:          geohash,
		OwnerUID:         owner.UID,
		OwnerDisplayName: owner.DisplayName,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
		MemberCount:      1,
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return r, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (*request.Request, error) {
	return s.store.Get(ctx, id)
}

// CloseNow pulls the expiry forward to the current instant. Only the owner
// may close; closing an already-expired request is a no-op.
func (s *Service) CloseNow(ctx context.Context, id, byUID string) (*request.Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.OwnerUID != byUID {
		return nil, fmt.Errorf("%w: only the owner may close a request", request.ErrForbidden)
	}

	now := time.Now().UTC()
	if r.Expired(now) {
		return r, nil
	}
	if err := s.store.SetExpiresAt(ctx, id, now); err != nil {
		return nil, err
	}
	r.ExpiresAt = now
	return r, nil
}

// Delete hard-deletes a request and everything owned by it. Missing and
// forbidden are distinct outcomes.
func (s *Service) Delete(ctx context.Context, id, byUID string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.OwnerUID != byUID {
		return fmt.Errorf("%w: only the owner may delete a request", request.ErrForbidden)
	}
	return s.store.Delete(ctx, id)
}

// ListOwnedBy returns the caller's requests, newest first.
func (s *Service) ListOwnedBy(ctx context.Context, uid string) ([]request.Request, error) {
	return s.store.ListByOwner(ctx, uid)
}

// Nearby finds open requests within radiusKm of the point, ascending by true
// distance with newest-first tie-breaks. The caller's own requests are
// excluded when excludeUID is set. Candidates come from geohash range scans
// and are refined by Haversine distance, so false positives near cell
// boundaries are discarded here.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64, excludeUID string) ([]request.Nearby, error) {
	if err := geoindex.Validate(lat, lng); err != nil {
		return nil, fmt.Errorf("%w: %v", request.ErrInvalidArgument, err)
	}

	if radiusKm == 0 {
		radiusKm = s.cfg.DefaultRadiusKm
	}
	if radiusKm < s.cfg.MinRadiusKm {
		radiusKm = s.cfg.MinRadiusKm
	}
	if radiusKm > s.cfg.MaxRadiusKm {
		radiusKm = s.cfg.MaxRadiusKm
	}
	radiusM := radiusKm * 1000

	bounds, err := geoindex.BoundsForRadius(lat, lng, radiusM, s.cfg.MaxGeoRanges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", request.ErrInvalidArgument, err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var out []request.Nearby

	for _, b := range bounds {
		candidates, err := s.store.FindInGeohashRange(ctx, b.Start, b.End, now, s.cfg.NearbyLimit)
		if err != nil {
			return nil, fmt.Errorf("error querying nearby candidates: %w", err)
		}
		for _, r := range candidates {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}

			if excludeUID != "" && r.OwnerUID == excludeUID {
				continue
			}
			d := geoindex.DistanceM(lat, lng, r.Lat, r.Lng)
			if d > radiusM {
				continue
			}
			out = append(out, request.Nearby{Request: r, DistanceM: math.Round(d)})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
