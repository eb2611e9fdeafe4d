package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/iai-protocole/registration/ptr"
	"github.com/iai-protocole/registration/registration"
	"github.com/iai-protocole/registration/slices"
)

const adminPasswordHeader = "X-Admin-Password"

// requireAdmin gates a handler behind the shared admin password.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		given := r.Header.Get(adminPasswordHeader)

		if a.cfg.AdminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(given), []byte(a.cfg.AdminPassword)) != 1 {
			a.getLoggerOrBaseLogger(r.Context()).Warn("Rejected admin request", "path", r.URL.Path)

			a.writeError(r.Context(), w, http.StatusUnauthorized, Error{
				Code:    AuthError,
				Message: "Invalid admin password",
			})
			return
		}

		next(w, r)
	}
}

type listRegistrationsResponse struct {
	Data        []registrationResponse `json:"data"`
	Cursor      *string                `json:"cursor,omitempty"`
	HasNextPage bool                   `json:"hasNextPage"`
}

func (a *API) handleAdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	limit := 10

	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		userLimit, err := strconv.Atoi(rawLimit)
		if err != nil || userLimit < 1 || userLimit > 50 {
			logger.Warn("Limit out of bounds", "limit", rawLimit)

			a.writeError(ctx, w, http.StatusBadRequest, Error{
				Code:    LimitOutOfBounds,
				Message: "Limit must be between 1 and 50",
			})
			return
		}
		limit = userLimit
	}

	var cursor *string
	if rawCursor := r.URL.Query().Get("cursor"); rawCursor != "" {
		cursor = ptr.String(rawCursor)
	}

	result, err := a.db.ListRegistrations(ctx, int32(limit), cursor)
	if err != nil {
		logger.Error("Failed to list registrations", "error", err)

		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) {
			switch registrationErr.Reason {
			case registration.REASON_INVALID_CURSOR:
				a.writeError(ctx, w, http.StatusBadRequest, Error{
					Code:    InvalidCursor,
					Message: "Cursor is invalid",
				})
				return
			}
		}

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to get registrations",
		})
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, listRegistrationsResponse{
		Data:        slices.Map(result.Data, registrationToApiRegistration),
		Cursor:      result.Cursor,
		HasNextPage: result.HasNextPage,
	})
}

func (a *API) handleAdminDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InvalidBody,
			Message: "Registration id must be a UUID",
		})
		return
	}

	if err := a.db.DeleteRegistration(ctx, id); err != nil {
		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) &&
			registrationErr.Reason == registration.REASON_REGISTRATION_DOES_NOT_EXIST {
			a.writeError(ctx, w, http.StatusNotFound, Error{
				Code:    NotFound,
				Message: "Registration was not found",
			})
			return
		}

		logger.Error("Failed to delete registration", "error", err, "registrationId", id)

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to delete registration",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setReviewFlagRequest struct {
	Reviewed bool `json:"reviewed"`
}

func (a *API) handleAdminSetReviewFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InvalidBody,
			Message: "Registration id must be a UUID",
		})
		return
	}

	var body setReviewFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			a.writeError(ctx, w, http.StatusBadRequest, Error{
				Code:    EmptyBody,
				Message: "Must specify a body",
			})
			return
		}

		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InvalidBody,
			Message: "Invalid body",
		})
		return
	}

	if err := a.db.SetReviewFlag(ctx, id, body.Reviewed); err != nil {
		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) &&
			registrationErr.Reason == registration.REASON_REGISTRATION_DOES_NOT_EXIST {
			a.writeError(ctx, w, http.StatusNotFound, Error{
				Code:    NotFound,
				Message: "Registration was not found",
			})
			return
		}

		logger.Error("Failed to set review flag", "error", err, "registrationId", id)

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to update registration",
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
