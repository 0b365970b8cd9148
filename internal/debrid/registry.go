package debrid

import (
	"github.com/amaumene/gostremiodebrid/internal/config"
	"github.com/amaumene/gostremiodebrid/internal/constants"
	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
	"github.com/amaumene/gostremiodebrid/pkg/alldebrid"
	"github.com/amaumene/gostremiodebrid/pkg/logger"
	"github.com/amaumene/gostremiodebrid/pkg/ratelimiter"
	"github.com/amaumene/gostremiodebrid/pkg/security"
)

var descriptors = []Descriptor{
	{ID: constants.DebridDebridLink, Name: "Debrid-Link", ShortName: "DL"},
	{ID: constants.DebridAllDebrid, Name: "AllDebrid", ShortName: "AD"},
	{ID: constants.DebridRealDebrid, Name: "Real-Debrid", ShortName: "RD"},
	{ID: constants.DebridPremiumize, Name: "Premiumize", ShortName: "PM"},
	{ID: constants.DebridStremThru, Name: "StremThru", ShortName: "ST"},
	{ID: constants.DebridPikPak, Name: "PikPak", ShortName: "PP"},
	{ID: constants.DebridEasyDebrid, Name: "EasyDebrid", ShortName: "ED"},
	{ID: constants.DebridOffcloud, Name: "Offcloud", ShortName: "OC"},
	{ID: constants.DebridTorBox, Name: "TorBox", ShortName: "TB"},
}

// Registry resolves a user's provider choice into a Provider. It owns the
// gateway status cache and the outbound limiter shared by every request.
type Registry struct {
	statuses     *StatusCache
	allDebrid    *alldebrid.Client
	adLimiter    ratelimiter.RateLimiter
	gatewayOnly  map[string]bool
	retryBudget  uint
	logger       logger.Logger
	descriptorBy map[string]Descriptor
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithAllDebridClient replaces the AllDebrid API client.
func WithAllDebridClient(c *alldebrid.Client) RegistryOption {
	return func(r *Registry) { r.allDebrid = c }
}

func NewRegistry(log logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		statuses:     NewStatusCache(),
		allDebrid:    alldebrid.NewClient(constants.AddonID),
		adLimiter:    ratelimiter.NewTokenBucket(constants.AllDebridRateBurst, constants.AllDebridRateLimit),
		gatewayOnly:  make(map[string]bool),
		retryBudget:  constants.GatewayRetryBudget,
		logger:       log,
		descriptorBy: make(map[string]Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.descriptorBy[d.ID] = d
	}
	// Only AllDebrid has a direct client in this build.
	for _, id := range constants.GatewayOnlyProviders {
		r.gatewayOnly[id] = true
	}
	for _, id := range []string{constants.DebridRealDebrid, constants.DebridDebridLink, constants.DebridPremiumize} {
		r.gatewayOnly[id] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the provider selected by u. Unknown ids fail with
// UNKNOWN_PROVIDER and leave no state behind. A direct AllDebrid key must be
// a plain token; gateway keys are passed through untouched.
func (r *Registry) Resolve(u *config.UserConfig) (Provider, error) {
	d, ok := r.descriptorBy[u.DebridID]
	if !ok {
		return nil, apperrors.NewUnknownProviderError(u.DebridID)
	}

	if d.ID != constants.DebridStremThru && (u.UseStremThru || r.gatewayOnly[d.ID]) {
		return NewStremThru(StremThruConfig{
			BaseURL:     u.StremThruURL,
			Store:       d.ID,
			APIKey:      u.DebridAPIKey,
			ClientIP:    u.IP,
			RetryBudget: r.retryBudget,
		}, r.statuses, r.logger), nil
	}

	switch d.ID {
	case constants.DebridStremThru:
		return NewStremThru(StremThruConfig{
			BaseURL:     u.StremThruURL,
			Store:       u.StremThruStore,
			APIKey:      u.DebridAPIKey,
			ClientIP:    u.IP,
			RetryBudget: r.retryBudget,
		}, r.statuses, r.logger), nil
	case constants.DebridAllDebrid:
		if !security.NewAPIKeyValidator().ValidateAPIKey(u.DebridAPIKey) {
			return nil, apperrors.NewConfigurationError("invalid AllDebrid API key", nil)
		}
		return NewAllDebrid(u.DebridAPIKey, r.allDebrid, r.adLimiter, r.logger), nil
	default:
		return NewUnsupported(d, u.DebridAPIKey), nil
	}
}

// List describes every registered provider.
func (r *Registry) List() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// StatusCache is shared by every gateway instance.
func (r *Registry) StatusCache() *StatusCache {
	return r.statuses
}
