package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/storage"
)

// MigrationService moves link targets off a retired mirror host.
type MigrationService interface {
	RewriteIfStale(target string) string
	ScanAndFix(ctx context.Context) (models.MigrationReport, error)
	Stats(ctx context.Context) (models.LinkStats, error)
}

type migrationServ struct {
	retiredHost     string
	replacementHost string
	store           storage.LinkStore
	log             *zap.SugaredLogger
}

func NewMigrationService(conf *config.Config, store storage.LinkStore, log *zap.SugaredLogger) MigrationService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &migrationServ{
		retiredHost:     strings.ToLower(conf.RetiredHost),
		replacementHost: strings.ToLower(conf.ReplacementHost),
		store:           store,
		log:             log,
	}
}

// RewriteIfStale swaps the retired host for the replacement host and keeps
// scheme, port, path, query and fragment. Other URLs come back unchanged.
func (s *migrationServ) RewriteIfStale(target string) string {
	if s.retiredHost == "" || s.retiredHost == s.replacementHost {
		return target
	}
	u, err := url.Parse(target)
	if err != nil || !strings.EqualFold(u.Hostname(), s.retiredHost) {
		return target
	}
	if port := u.Port(); port != "" {
		u.Host = s.replacementHost + ":" + port
	} else {
		u.Host = s.replacementHost
	}
	return u.String()
}

// ScanAndFix rewrites every stored target on the retired host inside one
// transaction. A second run finds nothing to fix.
func (s *migrationServ) ScanAndFix(ctx context.Context) (report models.MigrationReport, retErr error) {
	report.Details = []models.MigrationDetail{}
	if s.retiredHost == "" {
		return report, nil
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	candidates, err := tx.LinksWithTargetContaining(ctx, s.retiredHost)
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}

	for _, link := range candidates {
		report.Checked++
		fixed := s.RewriteIfStale(link.Target)
		if fixed == link.Target {
			continue
		}
		if err := tx.UpdateTarget(ctx, link.Code, fixed); err != nil {
			return report, fmt.Errorf("scan: rewrite %s: %w", link.Code, err)
		}
		report.Fixed++
		report.Details = append(report.Details, models.MigrationDetail{
			Code:      link.Code,
			OldTarget: link.Target,
			NewTarget: fixed,
		})
	}

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("scan: commit: %w", err)
	}
	s.log.Infow("migration sweep finished", "checked", report.Checked, "fixed", report.Fixed)
	return report, nil
}

// Stats counts links per mirror host.
func (s *migrationServ) Stats(ctx context.Context) (models.LinkStats, error) {
	links, err := s.store.AllLinks(ctx)
	if err != nil {
		return models.LinkStats{}, err
	}

	stats := models.LinkStats{Total: len(links), Other: []string{}}
	others := make(map[string]struct{})
	for _, link := range links {
		host := ""
		if u, err := url.Parse(link.Target); err == nil {
			host = strings.ToLower(u.Hostname())
		}
		switch {
		case host != "" && host == s.retiredHost:
			stats.OnOldDomain++
		case host != "" && host == s.replacementHost:
			stats.OnNewDomain++
		default:
			others[host] = struct{}{}
		}
	}
	for host := range others {
		stats.Other = append(stats.Other, host)
	}
	sort.Strings(stats.Other)
	return stats, nil
}
