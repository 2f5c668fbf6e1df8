package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
)

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSNS struct {
	in  *sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-2")}, nil
}

func TestSESEmailSender(t *testing.T) {
	fake := &fakeSES{}
	if err := NewSESEmailSender(fake).SendEmail(context.Background(), "ops@example.com", "alarms@example.com", "subj", "body"); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}

	if aws.ToString(fake.in.FromEmailAddress) != "alarms@example.com" {
		t.Errorf("unexpected from %s", aws.ToString(fake.in.FromEmailAddress))
	}
	if len(fake.in.Destination.ToAddresses) != 1 || fake.in.Destination.ToAddresses[0] != "ops@example.com" {
		t.Errorf("unexpected recipients %v", fake.in.Destination.ToAddresses)
	}
	if aws.ToString(fake.in.Content.Simple.Subject.Data) != "subj" || aws.ToString(fake.in.Content.Simple.Body.Text.Data) != "body" {
		t.Error("unexpected content")
	}
}

func TestSNSSMSSender(t *testing.T) {
	fake := &fakeSNS{}
	if err := NewSNSSMSSender(fake).SendSMS(context.Background(), "+15550100", "hello"); err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}

	if aws.ToString(fake.in.PhoneNumber) != "+15550100" || aws.ToString(fake.in.Message) != "hello" {
		t.Errorf("unexpected publish input %+v", fake.in)
	}
	if attr, ok := fake.in.MessageAttributes["AWS.SNS.SMS.SMSType"]; !ok || aws.ToString(attr.StringValue) != "Transactional" {
		t.Error("expected transactional sms type")
	}
}

func TestSenderErrorsCarryAPICode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "Throttling", Message: "rate exceeded"}

	err := NewSNSSMSSender(&fakeSNS{err: apiErr}).SendSMS(context.Background(), "+15550100", "hello")
	if !strings.Contains(err.Error(), "Throttling") {
		t.Errorf("expected API code in error, got %v", err)
	}
	var target smithy.APIError
	if !errors.As(err, &target) {
		t.Error("API error should stay unwrappable")
	}

	err = NewSESEmailSender(&fakeSES{err: errors.New("dial tcp: timeout")}).SendEmail(context.Background(), "a", "b", "c", "d")
	if err == nil || !strings.Contains(err.Error(), "ses send email") {
		t.Errorf("unexpected error %v", err)
	}
}
