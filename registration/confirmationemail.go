package registration

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/International-Combat-Archery-Alliance/email"
)

//go:embed templates
var templates embed.FS

// SendRegistrationConfirmationEmail emails the applicant after a
// successful submission. Callers treat failures as non-fatal; the
// registration is already stored by the time this runs.
func SendRegistrationConfirmationEmail(ctx context.Context, emailSender email.Sender, fromAddress string, record Record) error {
	htmlBody, err := renderTemplate("registration-confirmation.tmpl", record)
	if err != nil {
		return err
	}

	textOnlyBody, err := renderTemplate("registration-confirmation-textonly.tmpl", record)
	if err != nil {
		return err
	}

	return emailSender.SendEmail(ctx, email.Email{
		FromAddress: fromAddress,
		ToAddresses: []string{record.Email},
		Subject:     "Registration received - IAI PROTOCOLE",
		HTMLBody:    htmlBody,
		TextBody:    textOnlyBody,
	})
}

func renderTemplate(name string, record Record) (string, error) {
	tmpl, err := template.New(name).ParseFS(templates, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Registration": record,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}
