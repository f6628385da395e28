package adplatform

import (
	"context"

	"github.com/sellsadvisors/fleet/internal/model"
)

// Refresher adapts Client.RefreshToken to internal/adauth's Refresher
// interface, so the OAuth exchange lives next to the rest of the
// ad-platform wire format instead of being duplicated in internal/adauth.
type Refresher struct {
	Client Client
}

// NewRefresher wraps c as an adauth.Refresher.
func NewRefresher(c Client) Refresher {
	return Refresher{Client: c}
}

// Refresh exchanges refreshToken for a fresh token bundle.
func (r Refresher) Refresh(ctx context.Context, refreshToken string) (model.PinterestAuth, error) {
	bundle, err := r.Client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return model.PinterestAuth{}, err
	}
	return model.PinterestAuth{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresAt:    bundle.ExpiresAt,
	}, nil
}
