package sessions

import (
	"context"
	"time"

	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/google/uuid"
)

// FactoryParams describe how every session's storefront is wired. Template
// is copied per session with a private backend client.
type FactoryParams struct {
	BaseURL         string
	Timeout         time.Duration
	CommentCacheTTL time.Duration
	BackendMetrics  *metrics.BackendMetrics
	Template        storefront.Params
	// LoadCatalog fetches products and categories when the session starts.
	LoadCatalog bool
}

// NewFactory returns a Factory that gives each session its own cookie jar
// and CSRF token.
func NewFactory(params FactoryParams) Factory {
	return func(ctx context.Context, id uuid.UUID) (*storefront.Storefront, error) {
		client, err := backend.NewClient(params.BaseURL,
			backend.WithTimeout(params.Timeout),
			backend.WithMetrics(params.BackendMetrics),
			backend.WithCommentCacheTTL(params.CommentCacheTTL),
			backend.WithClock(params.Template.Now),
		)
		if err != nil {
			return nil, err
		}
		sfParams := params.Template
		sfParams.Backend = client
		if params.Template.Seed != nil {
			seed := *params.Template.Seed
			sfParams.Seed = &seed
		}
		sf, err := storefront.New(sfParams)
		if err != nil {
			return nil, err
		}
		if params.LoadCatalog {
			// Failures are already reported to the session inbox; the seed
			// catalog stays in place.
			_ = sf.Load(ctx)
		}
		return sf, nil
	}
}
