// Package adauth manages the ad platform's per-tenant OAuth token, refresh,
// and the critical section that keeps concurrent per-product goroutines
// within one tenant's fan-out from racing to refresh the same token twice.
package adauth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/resilience"
	"github.com/sellsadvisors/fleet/internal/store"
)

// Refresher exchanges a refresh token for a new access token bundle. The
// concrete implementation lives in pkg/adplatform; this package only owns
// the caching and single-flight refresh behavior.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.PinterestAuth, error)
}

// TokenSource hands out a valid access token per tenant, refreshing and
// persisting it exactly once even when many goroutines ask for it at the
// same instant within one tenant's bounded fan-out.
type TokenSource struct {
	store     store.Store
	refresher Refresher
	clock     func() time.Time

	mu     sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewTokenSource builds a TokenSource backed by st for persistence and
// refresher for the actual OAuth exchange.
func NewTokenSource(st store.Store, refresher Refresher) *TokenSource {
	return &TokenSource{
		store:     st,
		refresher: refresher,
		clock:     time.Now,
		inFlight:  make(map[string]*sync.Mutex),
	}
}

// tenantLock returns (creating if needed) the per-tenant mutex guarding
// refreshes, so two goroutines racing on the same tenant serialize instead
// of both hitting the OAuth endpoint.
func (ts *TokenSource) tenantLock(tenantID string) *sync.Mutex {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	l, ok := ts.inFlight[tenantID]
	if !ok {
		l = &sync.Mutex{}
		ts.inFlight[tenantID] = l
	}
	return l
}

// AccessToken returns a valid access token for tenantID, refreshing it
// first if the cached bundle is expired or about to expire.
func (ts *TokenSource) AccessToken(ctx context.Context, tenantID string) (string, error) {
	lock := ts.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	auth, err := ts.store.GetPinterestAuth(ctx, tenantID)
	if err != nil {
		return "", resilience.NewAuthExpiredError(tenantID, err)
	}

	if !auth.Expired(ts.clock().Add(60 * time.Second)) {
		return auth.AccessToken, nil
	}

	zap.L().Info("refreshing ad platform token", zap.String("tenant_id", tenantID))
	fresh, err := ts.refresher.Refresh(ctx, auth.RefreshToken)
	if err != nil {
		return "", resilience.NewAuthExpiredError(tenantID, err)
	}
	fresh.TenantID = tenantID
	if err := ts.store.SavePinterestAuth(ctx, fresh); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}
