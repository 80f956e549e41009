package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"imgpub/internal/domain/models"
	"imgpub/internal/publish"
	"imgpub/internal/services"
	"imgpub/internal/storage"
	"imgpub/internal/svg"
	"imgpub/internal/upload"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type gatewayConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// valid accepts the known keys only; the gateway URL must be an absolute http(s) URL.
func (r gatewayConfigRequest) valid() bool {
	switch r.Key {
	case models.ConfigKeyUserAgent:
		return true
	case models.ConfigKeyGatewayURL:
		if r.Value == "" {
			return true
		}
		u, err := url.Parse(r.Value)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	default:
		return false
	}
}

type ownerKey struct{}

func withOwnerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

// ownerID returns the owner put into the request context by Authenticate.
func ownerID(req *http.Request) string {
	id, _ := req.Context().Value(ownerKey{}).(string)
	return id
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	_ = json.NewEncoder(res).Encode(v)
}

func writeError(res http.ResponseWriter, status int, msg string) {
	writeJSON(res, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) (int, string) {
	var (
		verr *upload.ValidationError
		rerr *svg.RejectedError
		perr *publish.PublishError
		gerr *publish.GatewayError
	)

	switch {
	case errors.As(err, &verr):
		if verr.Reason == upload.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge, string(verr.Reason)
		}
		return http.StatusBadRequest, string(verr.Reason)
	case errors.As(err, &rerr):
		if rerr.Reason == svg.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge, string(rerr.Reason)
		}
		return http.StatusBadRequest, string(rerr.Reason)
	case errors.Is(err, publish.ErrNotConfigured):
		return http.StatusServiceUnavailable, "NotConfigured"
	case errors.As(err, &perr), errors.As(err, &gerr):
		return http.StatusBadGateway, "PublishFailed"
	case errors.Is(err, services.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, services.ErrInvalidCode), errors.Is(err, services.ErrInvalidTarget):
		return http.StatusBadRequest, ""
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, ""
	case errors.Is(err, services.ErrAllocationExhausted), errors.Is(err, storage.ErrNotConnected):
		return http.StatusServiceUnavailable, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

func (con *Controller) writeServiceError(res http.ResponseWriter, err error) {
	status, reason := statusFor(err)
	if status >= http.StatusInternalServerError {
		con.sugar.Errorw("request failed", "status", status, "error", err)
	} else {
		con.sugar.Debugw("request rejected", "status", status, "error", err)
	}

	// Server-side failures carry gateway addresses and upstream bodies; those stay in the log.
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(res, status, errorResponse{Error: msg, Reason: reason})
}
