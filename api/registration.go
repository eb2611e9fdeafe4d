package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/iai-protocole/registration/momo"
	"github.com/iai-protocole/registration/registration"
	"github.com/iai-protocole/registration/slices"
)

type registrationRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Age          int    `json:"age"`
	Nationality  string `json:"nationality"`
	Gender       string `json:"gender"`
	Class        string `json:"class"`
	AgreeToTerms bool   `json:"agreeToTerms"`
}

type registrationResponse struct {
	Id          uuid.UUID `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Age         int       `json:"age"`
	Nationality string    `json:"nationality"`
	Gender      string    `json:"gender"`
	Class       string    `json:"class"`
	Reviewed    bool      `json:"reviewed"`
	CreatedAt   time.Time `json:"createdAt"`
}

func registrationToApiRegistration(record registration.Record) registrationResponse {
	return registrationResponse{
		Id:          record.ID,
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		Email:       record.Email,
		Phone:       record.Phone,
		Age:         record.Age,
		Nationality: record.Nationality,
		Gender:      string(record.Gender),
		Class:       record.Class,
		Reviewed:    record.Reviewed,
		CreatedAt:   record.CreatedAt,
	}
}

func (a *API) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	var body registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			logger.Warn("Nil body for registration")

			a.writeError(ctx, w, http.StatusBadRequest, Error{
				Code:    EmptyBody,
				Message: "Must specify a body",
			})
			return
		}

		logger.Warn("Invalid body for registration", "error", err)

		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InvalidBody,
			Message: "Invalid body",
		})
		return
	}

	input := registration.FormInput{
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Email:        body.Email,
		Phone:        body.Phone,
		Age:          body.Age,
		Nationality:  body.Nationality,
		Gender:       body.Gender,
		Class:        body.Class,
		AgreeToTerms: body.AgreeToTerms,
	}

	record, err := registration.SubmitRegistration(ctx, input, a.db, a.cache, logger)
	if err != nil {
		var registrationErr *registration.Error

		if errors.As(err, &registrationErr) {
			switch registrationErr.Reason {
			case registration.REASON_INVALID_INPUT:
				logger.Warn("Registration failed validation",
					"field", registrationErr.Field,
					"error", err,
				)
				a.metrics.ValidationFailuresTotal.Inc()

				a.writeError(ctx, w, http.StatusBadRequest, Error{
					Code:    InputValidationError,
					Message: registrationErr.Message,
					Field:   registrationErr.Field,
				})
				return
			case registration.REASON_DUPLICATE_EMAIL:
				logger.Warn("Registration rejected for duplicate email")
				a.metrics.DuplicateEmailRejectionsTotal.Inc()

				a.writeError(ctx, w, http.StatusConflict, Error{
					Code:    AlreadyExists,
					Message: "A registration with this email already exists",
				})
				return
			}
		}

		logger.Error("Error trying to register", "error", err)

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to register",
		})
		return
	}

	a.metrics.RegistrationsTotal.Inc()

	if a.emailSender != nil {
		err := registration.SendRegistrationConfirmationEmail(ctx, a.emailSender, a.cfg.EmailFromAddress, record)
		if err != nil {
			// The registration is stored; a lost email is not worth a 500.
			logger.Warn("Failed to send registration confirmation email", "error", err)
		}
	}

	a.writeJSON(ctx, w, http.StatusCreated, registrationToApiRegistration(record))
}

func (a *API) handleGetMirroredRegistration(w http.ResponseWriter, r *http.Request) {
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

	if a.cache == nil {
		a.writeError(ctx, w, http.StatusNotFound, Error{
			Code:    NotFound,
			Message: "Registration was not found",
		})
		return
	}

	record, ok, err := a.cache.GetRegistration(ctx, id)
	if err != nil {
		logger.Error("Failed to read mirrored registration", "error", err, "registrationId", id)

		a.writeError(ctx, w, http.StatusInternalServerError, Error{
			Code:    InternalError,
			Message: "Failed to get registration",
		})
		return
	}
	if !ok {
		a.writeError(ctx, w, http.StatusNotFound, Error{
			Code:    NotFound,
			Message: "Registration was not found",
		})
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, registrationToApiRegistration(record))
}

type operatorResponse struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
}

type listOperatorsResponse struct {
	CountryCallingCode string             `json:"countryCallingCode"`
	Data               []operatorResponse `json:"data"`
}

func (a *API) handleListOperators(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, http.StatusOK, listOperatorsResponse{
		CountryCallingCode: momo.CountryCallingCode,
		Data: slices.Map(momo.Operators(), func(op momo.Operator) operatorResponse {
			return operatorResponse{
				Id:       string(op.ID),
				Name:     op.Name,
				Prefixes: op.Prefixes,
			}
		}),
	})
}

type detectOperatorResponse struct {
	Operator             string `json:"operator"`
	FormattedPhoneNumber string `json:"formattedPhoneNumber"`
}

func (a *API) handleDetectOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	phone := r.URL.Query().Get("phone")
	if phone == "" {
		a.writeError(ctx, w, http.StatusBadRequest, Error{
			Code:    InputValidationError,
			Message: "Must provide a phone number",
		})
		return
	}

	operator, ok := momo.DetectOperator(phone)
	if !ok {
		a.writeError(ctx, w, http.StatusNotFound, Error{
			Code:    NotFound,
			Message: "No operator matches this phone number",
		})
		return
	}

	a.writeJSON(ctx, w, http.StatusOK, detectOperatorResponse{
		Operator:             string(operator),
		FormattedPhoneNumber: momo.FormatPhoneNumber(phone),
	})
}
