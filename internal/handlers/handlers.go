// Package handlers exposes the upload pipeline and the short-link store over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/services"
)

// multipartOverhead is the room left for form fields and part headers on top of the file limit.
const multipartOverhead = 1 << 20

// Verifier checks the optional human-verification token sent with an upload.
type Verifier interface {
	Verify(ctx context.Context, token, remoteAddr string) error
}

// AcceptAll is the Verifier used when no external verification service is configured.
type AcceptAll struct{}

// Verify accepts every token.
func (AcceptAll) Verify(context.Context, string, string) error { return nil }

// Controller holds the services used by the HTTP handlers.
type Controller struct {
	services *services.CompositeService
	sugar    *zap.SugaredLogger
	conf     *config.Config
	verifier Verifier
}

// NewController creates a Controller that accepts every verification token.
func NewController(services *services.CompositeService, sugar *zap.SugaredLogger, conf *config.Config) *Controller {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Controller{services: services, sugar: sugar, conf: conf, verifier: AcceptAll{}}
}

// SetVerifier replaces the human-verification check.
func (con *Controller) SetVerifier(v Verifier) {
	if v == nil {
		v = AcceptAll{}
	}
	con.verifier = v
}

// Upload handles POST /api/upload.
//
// The multipart form carries the file under "file" and the optional
// "short_link", "owner_label" and "cf_token" fields. The response is the
// PublishResult as JSON.
func (con *Controller) Upload() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		limit := con.conf.MaxUploadBytes
		req.Body = http.MaxBytesReader(res, req.Body, limit+multipartOverhead)

		if err := req.ParseMultipartForm(multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(res, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
				return
			}
			writeError(res, http.StatusBadRequest, "malformed multipart form")
			return
		}
		defer func() {
			if err := req.MultipartForm.RemoveAll(); err != nil {
				con.sugar.Warnw("remove multipart temp files", "error", err)
			}
		}()

		if err := con.verifier.Verify(req.Context(), req.FormValue("cf_token"), req.RemoteAddr); err != nil {
			con.sugar.Infow("human verification failed", "remote", req.RemoteAddr, "error", err)
			writeError(res, http.StatusForbidden, "verification failed")
			return
		}

		file, header, err := req.FormFile("file")
		if err != nil {
			writeError(res, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		// One byte over the limit is enough for the gatekeeper to reject it.
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			writeError(res, http.StatusBadRequest, "cannot read uploaded file")
			return
		}

		wantLink, _ := strconv.ParseBool(req.FormValue("short_link"))
		result, err := con.services.UploadService.Upload(req.Context(), models.UploadRequest{
			Data:              data,
			Filename:          header.Filename,
			ContentType:       header.Header.Get("Content-Type"),
			WantShortLink:     wantLink,
			OwnerID:           ownerID(req),
			OwnerLabel:        strings.TrimSpace(req.FormValue("owner_label")),
			VerificationToken: req.FormValue("cf_token"),
		})
		if err != nil {
			con.writeServiceError(res, err)
			return
		}

		writeJSON(res, http.StatusCreated, result)
	}
}

// Redirect handles GET /s/{code}.
func (con *Controller) Redirect() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		target, err := con.services.LinkService.Resolve(req.Context(), chi.URLParam(req, "code"))
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		http.Redirect(res, req, target, http.StatusTemporaryRedirect)
	}
}

// ListLinks handles GET /api/links.
func (con *Controller) ListLinks() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

		links, err := con.services.LinkService.ListByOwner(req.Context(), ownerID(req), page, size)
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, links)
	}
}

// DeleteLink handles DELETE /api/links/{code}.
func (con *Controller) DeleteLink() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		owner := ownerID(req)
		if owner == "" {
			writeError(res, http.StatusUnauthorized, "owner is required")
			return
		}

		deleted, err := con.services.LinkService.Delete(req.Context(), chi.URLParam(req, "code"), owner)
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		if !deleted {
			writeError(res, http.StatusNotFound, "short link not found")
			return
		}
		res.WriteHeader(http.StatusNoContent)
	}
}

// BatchDeleteLinks handles DELETE /api/links with a JSON array of codes.
func (con *Controller) BatchDeleteLinks() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		owner := ownerID(req)
		if owner == "" {
			writeError(res, http.StatusUnauthorized, "owner is required")
			return
		}

		var codes []string
		if err := json.NewDecoder(req.Body).Decode(&codes); err != nil {
			writeError(res, http.StatusBadRequest, "body must be a JSON array of codes")
			return
		}

		n, err := con.services.LinkService.BatchDelete(req.Context(), codes, owner)
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, deletedResponse{Deleted: int64(n)})
	}
}

// ExportLinks handles GET /api/admin/links/export.
func (con *Controller) ExportLinks() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		links, err := con.services.LinkService.ExportAll(req.Context())
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, links)
	}
}

// DeleteAllLinks handles DELETE /api/admin/links.
func (con *Controller) DeleteAllLinks() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		n, err := con.services.LinkService.DeleteAll(req.Context())
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		con.sugar.Infow("all short links deleted", "count", n)
		writeJSON(res, http.StatusOK, deletedResponse{Deleted: n})
	}
}

// ScanMigration handles POST /api/admin/migration/scan.
func (con *Controller) ScanMigration() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		report, err := con.services.MigrationService.ScanAndFix(req.Context())
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, report)
	}
}

// MigrationStats handles GET /api/admin/migration/stats.
func (con *Controller) MigrationStats() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		stats, err := con.services.MigrationService.Stats(req.Context())
		if err != nil {
			con.writeServiceError(res, err)
			return
		}
		writeJSON(res, http.StatusOK, stats)
	}
}

// PutGatewayConfig handles PUT /api/admin/gateway.
func (con *Controller) PutGatewayConfig() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		var body gatewayConfigRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(res, http.StatusBadRequest, "malformed JSON body")
			return
		}
		body.Value = strings.TrimSpace(body.Value)
		if !body.valid() {
			writeError(res, http.StatusBadRequest, "unknown key or invalid value")
			return
		}

		if err := con.services.ConfigStore.UpsertConfig(req.Context(), body.Key, body.Value); err != nil {
			con.writeServiceError(res, err)
			return
		}
		con.sugar.Infow("gateway setting updated", "key", body.Key)
		res.WriteHeader(http.StatusNoContent)
	}
}

// PingHandler handles GET /ping.
func (con *Controller) PingHandler() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		if err := con.services.LinkService.Ping(req.Context()); err != nil {
			con.sugar.Errorw("ping failed", "error", err)
			http.Error(res, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		res.WriteHeader(http.StatusOK)
	}
}
