// Package services contains the link allocator, the domain migration sweep and
// the upload orchestration.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jxskiss/base62"
	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/metrics"
	"imgpub/internal/storage"
)

// MaxAllocationAttempts bounds code regeneration within one allocation.
const MaxAllocationAttempts = 10

const defaultCodeLength = 6

var (
	ErrAllocationExhausted = errors.New("no free short code after bounded attempts")
	ErrNotFound            = errors.New("short link not found")
	ErrInvalidCode         = errors.New("invalid short code")
	ErrInvalidTarget       = errors.New("target must be an absolute http or https URL")
	ErrUnauthorized        = errors.New("owner is required")
)

var codeRe = regexp.MustCompile(`^[0-9A-Za-z]{4,32}$`)

//go:generate mockgen -destination=../mocks/mock_services.go -package=mocks imgpub/internal/services LinkService,MigrationService,Publisher,UploadService

type LinkService interface {
	Allocate(ctx context.Context, target, ownerID, ownerLabel string) (string, error)
	Resolve(ctx context.Context, code string) (string, error)
	Delete(ctx context.Context, code, ownerID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (models.LinkPage, error)
	BatchDelete(ctx context.Context, codes []string, ownerID string) (int, error)
	ExportAll(ctx context.Context) ([]models.ShortLink, error)
	DeleteAll(ctx context.Context) (int64, error)
	ShortURL(code string) string
	Ping(ctx context.Context) error
}

type linkServ struct {
	config *config.Config
	store  storage.LinkStore
	log    *zap.SugaredLogger

	// newCode is replaced in tests.
	newCode func(n int) (string, error)
}

func NewLinkService(conf *config.Config, store storage.LinkStore, log *zap.SugaredLogger) LinkService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &linkServ{
		config:  conf,
		store:   store,
		log:     log,
		newCode: GenerateCode,
	}
}

// GenerateCode returns n base62 characters drawn from crypto/rand.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		n = defaultCodeLength
	}
	var code strings.Builder
	for code.Len() < n {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		code.WriteString(base62.EncodeToString(buf))
	}
	return code.String()[:n], nil
}

// ValidCode reports whether code has the shape of a generated code.
func ValidCode(code string) bool {
	return codeRe.MatchString(code)
}

func validTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *linkServ) ShortURL(code string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/s/" + code
}

// Allocate stores target under a fresh code. The existence check and the
// insert share one transaction; a conflicting insert counts as a collision.
func (s *linkServ) Allocate(ctx context.Context, target, ownerID, ownerLabel string) (shortURL string, retErr error) {
	if !validTarget(target) {
		return "", ErrInvalidTarget
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("allocate: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for attempt := 1; attempt <= MaxAllocationAttempts; attempt++ {
		code, err := s.newCode(s.config.CodeLength)
		if err != nil {
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
			return "", err
		}

		taken, err := tx.CodeExists(ctx, code)
		if err != nil {
			metrics.AllocationsTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("allocate: %w", err)
		}
		if !taken {
			inserted, err := tx.InsertLink(ctx, models.ShortLink{
				Code:       code,
				Target:     target,
				OwnerID:    ownerID,
				OwnerLabel: ownerLabel,
			})
			if err != nil {
				metrics.AllocationsTotal.WithLabelValues("error").Inc()
				return "", fmt.Errorf("allocate: %w", err)
			}
			if inserted {
				if err := tx.Commit(); err != nil {
					metrics.AllocationsTotal.WithLabelValues("error").Inc()
					return "", fmt.Errorf("allocate: commit: %w", err)
				}
				metrics.AllocationsTotal.WithLabelValues("success").Inc()
				s.log.Debugw("short link allocated", "code", code, "attempt", attempt)
				return s.ShortURL(code), nil
			}
		}

		metrics.CodeCollisionsTotal.Inc()
		s.log.Debugw("short code collision", "code", code, "attempt", attempt)
	}

	metrics.AllocationsTotal.WithLabelValues("exhausted").Inc()
	return "", ErrAllocationExhausted
}

func (s *linkServ) Resolve(ctx context.Context, code string) (string, error) {
	if !ValidCode(code) {
		return "", ErrInvalidCode
	}
	link, err := s.store.FindLink(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return link.Target, nil
}

func (s *linkServ) Delete(ctx context.Context, code, ownerID string) (bool, error) {
	if !ValidCode(code) {
		return false, ErrInvalidCode
	}
	return s.store.DeleteLink(ctx, code, ownerID)
}

func (s *linkServ) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) (models.LinkPage, error) {
	if ownerID == "" {
		return models.LinkPage{}, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	links, total, err := s.store.ListLinksByOwner(ctx, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return models.LinkPage{}, err
	}
	return models.LinkPage{Links: links, Total: total, Page: page, PageSize: pageSize}, nil
}

// BatchDelete deletes the owner's codes with NumWorkers workers and returns
// how many were removed. Malformed codes fail the whole batch up front.
func (s *linkServ) BatchDelete(ctx context.Context, codes []string, ownerID string) (int, error) {
	for _, code := range codes {
		if !ValidCode(code) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	if len(codes) == 0 {
		return 0, nil
	}

	doneCh := make(chan struct{})
	defer close(doneCh)

	inputCh := createCodeChannel(doneCh, codes)
	workerChs := s.distributeDeleteTasks(ctx, doneCh, inputCh, s.config.NumWorkers, ownerID)

	count := 0
	for range collectDeletionResults(workerChs...) {
		count++
	}
	return count, ctx.Err()
}

func (s *linkServ) distributeDeleteTasks(ctx context.Context, doneCh chan struct{}, inputCh chan string, numWorkers int, ownerID string) []chan string {
	if numWorkers < 1 {
		numWorkers = 1
	}
	resultChs := make([]chan string, 0, numWorkers)

	for i := 0; i < numWorkers; i++ {
		resultCh := make(chan string)

		go func(ch chan string) {
			defer close(ch)
			for code := range inputCh {
				deleted, err := s.store.DeleteLink(ctx, code, ownerID)
				if err != nil {
					s.log.Warnw("batch delete failed", "code", code, "error", err)
					continue
				}
				if !deleted {
					continue
				}
				select {
				case <-doneCh:
					return
				case ch <- code:
				}
			}
		}(resultCh)

		resultChs = append(resultChs, resultCh)
	}

	return resultChs
}

func (s *linkServ) ExportAll(ctx context.Context) ([]models.ShortLink, error) {
	links, err := s.store.AllLinks(ctx)
	if err != nil {
		return nil, err
	}
	valid := links[:0]
	for _, link := range links {
		if ValidCode(link.Code) {
			valid = append(valid, link)
		} else {
			s.log.Warnw("skipping malformed code in export", "code", link.Code)
		}
	}
	return valid, nil
}

func (s *linkServ) DeleteAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAllLinks(ctx)
}

func (s *linkServ) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database connection error: %w", err)
	}
	return nil
}
