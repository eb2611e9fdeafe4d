// Package registration holds the applicant record model and the intake
// workflow: validate the form, reject duplicate emails, persist, and
// mirror the record into the cache.
package registration

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GENDER_MALE   Gender = "male"
	GENDER_FEMALE Gender = "female"
)

// ParseGender maps raw form input to the fixed enumeration.
func ParseGender(s string) (Gender, bool) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GENDER_MALE:
		return GENDER_MALE, true
	case GENDER_FEMALE:
		return GENDER_FEMALE, true
	default:
		return "", false
	}
}

// Record is one stored applicant registration. ID and CreatedAt are
// assigned at creation and never change; Reviewed is the only field the
// admin view may flip afterwards.
type Record struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Age         int
	Nationality string
	Gender      Gender
	Class       string
	Reviewed    bool
	CreatedAt   time.Time
}

// FormInput is the raw registration form submission.
type FormInput struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Age          int
	Nationality  string
	Gender       string
	Class        string
	AgreeToTerms bool
}

type ListRegistrationsResponse struct {
	Data        []Record
	Cursor      *string
	HasNextPage bool
}

type Repository interface {
	CreateRegistration(ctx context.Context, record Record) error
	ListRegistrations(ctx context.Context, limit int32, cursor *string) (ListRegistrationsResponse, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	DeleteRegistration(ctx context.Context, id uuid.UUID) error
	SetReviewFlag(ctx context.Context, id uuid.UUID, reviewed bool) error
}

// Cache mirrors created records for offline reads. Mirroring is best
// effort; the workflow never fails a submission over it.
type Cache interface {
	MirrorRegistration(ctx context.Context, record Record) error
}

// SubmitRegistration runs the intake workflow. The email duplicate
// check happens before the write; the store additionally enforces
// uniqueness at create time, so a racing submission with the same email
// still loses with a DUPLICATE_EMAIL error rather than writing twice.
func SubmitRegistration(ctx context.Context, input FormInput, repo Repository, cache Cache, logger *slog.Logger) (Record, error) {
	if err := validateFormInput(input); err != nil {
		return Record{}, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	exists, err := repo.EmailExists(ctx, email)
	if err != nil {
		return Record{}, NewFailedToFetchError("Failed to check for an existing registration", err)
	}
	if exists {
		return Record{}, NewDuplicateEmailError(email)
	}

	gender, _ := ParseGender(input.Gender)

	record := Record{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Email:       email,
		Phone:       strings.TrimSpace(input.Phone),
		Age:         input.Age,
		Nationality: strings.TrimSpace(input.Nationality),
		Gender:      gender,
		Class:       strings.TrimSpace(input.Class),
		Reviewed:    false,
		CreatedAt:   time.Now().UTC(),
	}

	if err := repo.CreateRegistration(ctx, record); err != nil {
		return Record{}, err
	}

	if cache != nil {
		if err := cache.MirrorRegistration(ctx, record); err != nil {
			logger.Warn("failed to mirror registration into cache",
				slog.String("registrationId", record.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return record, nil
}
