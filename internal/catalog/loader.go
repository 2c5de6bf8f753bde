// Package catalog loads events and user profiles from the foundation API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
	"github.com/wellbeing-foundation/registration-engine/pkg/client"
)

// Common errors
var (
	ErrNotFound = errors.New("event not found")
	ErrFetch    = errors.New("failed to fetch from the foundation API")
)

// FetchError is any upstream failure other than a missing event
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrFetch
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// Listing is an event together with the caller's enrollment flag
type Listing struct {
	Event      models.Event `json:"event"`
	IsEnrolled bool         `json:"is_enrolled"`
}

// Loader resolves events by slug and user profiles by id
type Loader struct {
	api        *client.Client
	cache      ProfileCache
	profileTTL time.Duration
	logger     *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithProfileCache caches profiles for ttl
func WithProfileCache(cache ProfileCache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = cache
		l.profileTTL = ttl
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader over the foundation API client
func NewLoader(api *client.Client, opts ...LoaderOption) *Loader {
	l := &Loader{
		api:    api,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load fetches the event identified by slug on behalf of user. The
// enrollment flag is only meaningful for a logged-in user.
func (l *Loader) Load(ctx context.Context, user models.CurrentUser, slug string) (*Listing, error) {
	listing, err := l.api.WithBearer(user.Token).GetEvent(ctx, slug)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &FetchError{Op: "get event " + slug, Err: err}
	}

	return &Listing{
		Event:      listing.Event,
		IsEnrolled: listing.IsEnrolled && !user.Anonymous(),
	}, nil
}

// Profile returns the profile of user. Anonymous users get an empty profile,
// which prices at the base rate.
func (l *Loader) Profile(ctx context.Context, user models.CurrentUser) (models.UserProfile, error) {
	if user.Anonymous() {
		return models.UserProfile{}, nil
	}

	if l.cache != nil {
		profile, ok, err := l.cache.Get(ctx, user.ID)
		if err != nil {
			l.logger.Warn("profile cache read failed", "error", err, "user_id", user.ID)
		} else if ok {
			return profile, nil
		}
	}

	profile, err := l.api.WithBearer(user.Token).GetUserDetails(ctx, user.ID)
	if err != nil {
		return models.UserProfile{}, &FetchError{Op: "get user details", Err: err}
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, user.ID, *profile, l.profileTTL); err != nil {
			l.logger.Warn("profile cache write failed", "error", err, "user_id", user.ID)
		}
	}

	return *profile, nil
}
