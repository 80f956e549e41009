// Package publish uploads artifacts to a content-addressed storage gateway.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/storage"
)

// ErrNotConfigured means no gateway endpoint is known. It is never retried.
var ErrNotConfigured = errors.New("upload gateway is not configured")

// Settings are resolved once per request and passed down explicitly.
type Settings struct {
	GatewayURL string
	BackupURL  string
	UserAgent  string
	MirrorBase string
}

// SettingsSource is the part of the config store settings are read from.
type SettingsSource interface {
	FindConfig(ctx context.Context, key string) (models.GatewayConfig, error)
}

// FallbackSettings returns the settings configured for the process.
func FallbackSettings(c *config.Config) Settings {
	return Settings{
		GatewayURL: c.GatewayURL,
		BackupURL:  c.BackupGatewayURL,
		UserAgent:  c.UserAgent,
		MirrorBase: c.MirrorBaseURL,
	}
}

// ResolveSettings overlays the stored gateway URL and user agent on fallback.
// A store that is not connected or lacks a key leaves the fallback value in
// place; ErrNotConfigured is returned when no gateway URL remains.
func ResolveSettings(ctx context.Context, src SettingsSource, fallback Settings) (Settings, error) {
	s := fallback
	var lookupErr error

	if src != nil {
		if v, err := lookup(ctx, src, models.ConfigKeyGatewayURL); err != nil {
			lookupErr = err
		} else if v != "" {
			s.GatewayURL = v
		}
		if v, err := lookup(ctx, src, models.ConfigKeyUserAgent); err == nil && v != "" {
			s.UserAgent = v
		}
	}

	if strings.TrimSpace(s.GatewayURL) == "" {
		if lookupErr != nil {
			return Settings{}, fmt.Errorf("%w: %v", ErrNotConfigured, lookupErr)
		}
		return Settings{}, ErrNotConfigured
	}
	return s, nil
}

func lookup(ctx context.Context, src SettingsSource, key string) (string, error) {
	cfg, err := src.FindConfig(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.Value), nil
}
