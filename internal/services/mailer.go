package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/rewind/internal/shared"
	"github.com/go-resty/resty/v2"
)

const sendgridBaseURL = "https://api.sendgrid.com"

// Mailer delivers rendered weekly reports through the SendGrid v3 API.
type Mailer struct {
	client *resty.Client
	apiKey string
	from   string
}

// NewMailer creates a Mailer with the given SendGrid API key and sender address.
func NewMailer(apiKey, fromAddress string) (*Mailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing sendgrid api_key", shared.ErrMissingCredentials)
	}
	if fromAddress == "" {
		return nil, fmt.Errorf("%w: missing sendgrid from_address", shared.ErrMissingCredentials)
	}

	return &Mailer{
		client: resty.New().SetBaseURL(sendgridBaseURL),
		apiKey: apiKey,
		from:   fromAddress,
	}, nil
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

// Send delivers an HTML email to a single recipient.
func (m *Mailer) Send(ctx context.Context, toEmail, toName, subject, html string) error {
	if toEmail == "" {
		return fmt.Errorf("%w: recipient email is empty", shared.ErrInvalidArgument)
	}

	body := mailRequest{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: toEmail, Name: toName}}}},
		From:             mailAddress{Email: m.from},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/html", Value: html}},
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(m.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: sendgrid status %d", shared.ErrUpstreamUnavailable, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("sendgrid rejected message: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
