package registration

import "strings"

// validateFormInput applies the form rules in their fixed order; the
// first failing check wins and the rest are skipped.
func validateFormInput(input FormInput) error {
	if strings.TrimSpace(input.FirstName) == "" {
		return NewInvalidInputError("firstName", "Please enter your first name")
	}

	if strings.TrimSpace(input.LastName) == "" {
		return NewInvalidInputError("lastName", "Please enter your last name")
	}

	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return NewInvalidInputError("email", "Please enter a valid email address")
	}

	if strings.TrimSpace(input.Phone) == "" {
		return NewInvalidInputError("phone", "Please enter your phone number")
	}

	if input.Age < 1 || input.Age > 100 {
		return NewInvalidInputError("age", "Please enter a valid age (1-100)")
	}

	if _, ok := ParseGender(input.Gender); !ok {
		return NewInvalidInputError("gender", "Please select your gender")
	}

	if strings.TrimSpace(input.Class) == "" {
		return NewInvalidInputError("class", "Please enter your class")
	}

	if !input.AgreeToTerms {
		return NewInvalidInputError("agreeToTerms", "Please agree to the terms and conditions")
	}

	return nil
}
