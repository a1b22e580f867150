// Package mailer delivers rendered messages through Amazon SES.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"meeting-summarizer/internal/domain"
)

const (
	defaultSenderName = "Summary App"
	charsetUTF8       = "UTF-8"
)

// sesAPI is the minimal SES v2 interface required by Client.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Client struct {
	api              sesAPI
	from             string
	configurationSet string
}

type Option func(*Client)

// WithConfigurationSet tags outgoing mail with an SES configuration set.
func WithConfigurationSet(name string) Option {
	return func(c *Client) {
		c.configurationSet = strings.TrimSpace(name)
	}
}

// New creates a Client sending from fromAddress. A bare address is given the
// "Summary App" display name.
func New(api sesAPI, fromAddress string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("mailer: api must not be nil")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(fromAddress))
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if addr.Name == "" {
		addr.Name = defaultSenderName
	}
	c := &Client{api: api, from: addr.String()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send hands a single message to SES. Failures are returned unretried.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMail) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mailer: recipient is required")
	}
	if msg.HTMLBody == "" && msg.TextBody == "" {
		return errors.New("mailer: message body is required")
	}

	body := &types.Body{}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(charsetUTF8)}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String(charsetUTF8)}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
				Body:    body,
			},
		},
	}
	if c.configurationSet != "" {
		in.ConfigurationSetName = aws.String(c.configurationSet)
	}

	out, err := c.api.SendEmail(ctx, in)
	if err != nil {
		return fmt.Errorf("mailer: send email: %w", err)
	}
	if out != nil && out.MessageId != nil {
		slog.InfoContext(ctx, "summary digest sent", "message_id", *out.MessageId)
	}
	return nil
}
