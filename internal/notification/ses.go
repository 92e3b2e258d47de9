package notification

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

const sesCharset = "UTF-8"

type SESTransport struct {
	client sesiface.SESAPI
}

// NewSESTransport uses the default AWS credential chain for region.
func NewSESTransport(region string) (*SESTransport, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}

	return &SESTransport{client: ses.New(sess)}, nil
}

func (t *SESTransport) Deliver(ctx context.Context, email Email) error {
	_, err := t.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source: aws.String(email.From),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(email.To)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{
				Charset: aws.String(sesCharset),
				Data:    aws.String(email.Subject),
			},
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String(sesCharset),
					Data:    aws.String(email.HTMLBody),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
