package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sesTypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

const charsetUTF8 = "UTF-8"

// sendEmailAPI is the subset of the SES v2 client used for alarm emails.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESEmailSender sends plain-text emails through SES.
type SESEmailSender struct {
	client sendEmailAPI
}

// NewSESEmailSender wraps an SES v2 client.
func NewSESEmailSender(client sendEmailAPI) *SESEmailSender {
	return &SESEmailSender{client: client}
}

// SendEmail sends one message to a single recipient.
func (s *SESEmailSender) SendEmail(ctx context.Context, to, from, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sesTypes.Destination{
			ToAddresses: []string{to},
		},
		Content: &sesTypes.EmailContent{
			Simple: &sesTypes.Message{
				Subject: &sesTypes.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
				Body: &sesTypes.Body{
					Text: &sesTypes.Content{Data: aws.String(body), Charset: aws.String(charsetUTF8)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", describeAPIError(err))
	}
	return nil
}

// publishAPI is the subset of the SNS client used for alarm texts.
type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSMSSender sends transactional text messages through SNS.
type SNSSMSSender struct {
	client publishAPI
}

// NewSNSSMSSender wraps an SNS client.
func NewSNSSMSSender(client publishAPI) *SNSSMSSender {
	return &SNSSMSSender{client: client}
}

// SendSMS publishes one message directly to a phone number.
func (s *SNSSMSSender) SendSMS(ctx context.Context, phoneNumber, body string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(body),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish sms: %w", describeAPIError(err))
	}
	return nil
}

// describeAPIError prefixes service errors with their API error code.
func describeAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
