// Package webhooks keeps the Upstream webhook subscription for the bridge's
// callback URL in place.
package webhooks

import (
	"context"
	"fmt"

	"github.com/aristath/ledgerbridge/internal/domain"
	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/rs/zerolog"
)

const (
	// Collection holds registered webhooks, keyed by url
	Collection = "webhooks"
	byURL      = "webhooks__url"

	description = "ledgerbridge"
)

// Registration describes the subscription serving a callback URL
type Registration struct {
	Webhook domain.Webhook
	Created bool
}

// Registrar registers the callback URL with Upstream at most once
type Registrar struct {
	up    domain.UpstreamClient
	store store.Store
	log   zerolog.Logger
}

// NewRegistrar creates a registrar
func NewRegistrar(up domain.UpstreamClient, s store.Store, log zerolog.Logger) *Registrar {
	return &Registrar{
		up:    up,
		store: s,
		log:   log.With().Str("component", "webhooks").Logger(),
	}
}

// EnsureRegistered creates a subscription for callbackURL unless one with
// exactly that URL already exists. Newly created subscriptions are stored
// with their secret key.
func (r *Registrar) EnsureRegistered(ctx context.Context, callbackURL string) (Registration, error) {
	hooks, err := r.up.ListWebhooks(ctx)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to list webhooks: %w", err)
	}

	for _, hook := range hooks {
		if hook.URL == callbackURL {
			r.log.Debug().Str("webhook_id", hook.ID).Str("url", callbackURL).Msg("Webhook already registered")
			known, found, err := store.Lookup[domain.Webhook](r.store, byURL, callbackURL)
			if err != nil {
				r.log.Warn().Err(err).Msg("Failed to load stored webhook secret")
			} else if found {
				hook.SecretKey = known.SecretKey
			}
			return Registration{Webhook: hook}, nil
		}
	}

	hook, err := r.up.CreateWebhook(ctx, callbackURL, description)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to create webhook: %w", err)
	}

	if _, err := store.PutAll(r.store, Collection, "url", []domain.Webhook{*hook}); err != nil {
		// Deliveries still arrive; they just cannot be authenticated
		r.log.Warn().Err(err).Msg("Failed to store webhook secret")
	}

	r.log.Info().Str("webhook_id", hook.ID).Str("url", callbackURL).Msg("Webhook registered")
	return Registration{Webhook: *hook, Created: true}, nil
}

// SecretFor returns the stored secret key for callbackURL, or "" when none is known
func (r *Registrar) SecretFor(callbackURL string) (string, error) {
	hook, found, err := store.Lookup[domain.Webhook](r.store, byURL, callbackURL)
	if err != nil || !found {
		return "", err
	}
	return hook.SecretKey, nil
}
