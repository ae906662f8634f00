package notify

import (
	"context"
	"fmt"

	"presales/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESService is the subset of the SES client used here.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the subset of the SNS client used here.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// Email mails a lead summary to the sales team.
type Email struct {
	client     SESService
	sender     string
	recipients []string
}

func NewEmail(client SESService, sender string, recipients []string) *Email {
	return &Email{client: client, sender: sender, recipients: recipients}
}

func (e *Email) NotifyLead(ctx context.Context, lead *models.LeadRecord) error {
	subject := "New lead: " + models.StringValue(lead.ClientName)
	_, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: e.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(Summary(lead))},
			},
		},
		Source: aws.String(e.sender),
	})
	if err != nil {
		return fmt.Errorf("send lead email: %w", err)
	}
	return nil
}

// Topic publishes a lead summary to an SNS topic.
type Topic struct {
	client SNSService
	arn    string
}

func NewTopic(client SNSService, arn string) *Topic {
	return &Topic{client: client, arn: arn}
}

func (t *Topic) NotifyLead(ctx context.Context, lead *models.LeadRecord) error {
	_, err := t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.arn),
		Subject:  aws.String("New lead"),
		Message:  aws.String(Summary(lead)),
	})
	if err != nil {
		return fmt.Errorf("publish lead: %w", err)
	}
	return nil
}
