package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/metrics"
	"imgpub/internal/publish"
	"imgpub/internal/svg"
	"imgpub/internal/upload"
)

// Publisher sends a prepared file to the storage gateway.
type Publisher interface {
	Publish(ctx context.Context, settings publish.Settings, file publish.File) (*models.PublishResult, error)
}

// UploadService runs one upload from validation to the optional short link.
type UploadService interface {
	Upload(ctx context.Context, req models.UploadRequest) (*models.PublishResult, error)
}

type uploadServ struct {
	config     *config.Config
	gatekeeper *upload.Gatekeeper
	sanitizer  *svg.Sanitizer
	settings   publish.SettingsSource
	publisher  Publisher
	links      LinkService
	migration  MigrationService
	log        *zap.SugaredLogger
}

func NewUploadService(
	conf *config.Config,
	settings publish.SettingsSource,
	publisher Publisher,
	links LinkService,
	migration MigrationService,
	log *zap.SugaredLogger,
) UploadService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &uploadServ{
		config:     conf,
		gatekeeper: upload.NewGatekeeper(conf.MaxUploadBytes),
		sanitizer:  svg.NewSanitizer(log),
		settings:   settings,
		publisher:  publisher,
		links:      links,
		migration:  migration,
		log:        log,
	}
}

// Upload validates, sanitizes, names and publishes the file. SVG bytes reach
// the network only after sanitization, and a link is minted only after a
// successful publish. A failed allocation leaves ShortURL empty.
func (s *uploadServ) Upload(ctx context.Context, req models.UploadRequest) (*models.PublishResult, error) {
	contentType := upload.DetectType(req.Data, req.ContentType)

	res, err := s.publish(ctx, req, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(contentType, models.StatusFailed).Inc()
		return nil, err
	}
	metrics.UploadsTotal.WithLabelValues(contentType, models.StatusSuccess).Inc()
	metrics.UploadBytesTotal.WithLabelValues(contentType).Add(float64(res.ByteSize))

	if req.WantShortLink {
		target := s.migration.RewriteIfStale(res.GatewayURL)
		shortURL, err := s.links.Allocate(ctx, target, req.OwnerID, req.OwnerLabel)
		if err != nil {
			s.log.Warnw("short link allocation failed", "cid", res.ContentID, "target", target, "error", err)
		} else {
			res.ShortURL = shortURL
		}
	}
	return res, nil
}

func (s *uploadServ) publish(ctx context.Context, req models.UploadRequest, contentType string) (*models.PublishResult, error) {
	if err := s.gatekeeper.Validate(req.Data, contentType); err != nil {
		return nil, err
	}

	data := req.Data
	if upload.IsSVG(contentType) {
		if err := svg.Validate(data); err != nil {
			return nil, err
		}
		data = s.sanitizer.Sanitize(data)
		if len(data) == 0 {
			return nil, &svg.RejectedError{Reason: svg.ReasonMissingEnvelope, Detail: "nothing left after sanitization"}
		}
	}

	name := upload.NormalizeFilename(req.Filename, contentType)

	settings, err := publish.ResolveSettings(ctx, s.settings, publish.FallbackSettings(s.config))
	if err != nil {
		return nil, err
	}

	res, err := s.publisher.Publish(ctx, settings, publish.File{Name: name, ContentType: contentType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", name, err)
	}
	s.log.Infow("artifact published", "cid", res.ContentID, "filename", name, "bytes", res.ByteSize, "endpoint", res.Endpoint)
	return res, nil
}
