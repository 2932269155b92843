package alerts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts to an SNS topic. Alert topics are topic ARNs.
type SNSNotifier struct {
	client SNSAPI
}

func NewSNSNotifier(client SNSAPI) *SNSNotifier {
	return &SNSNotifier{client: client}
}

// NewSNSNotifierFromConfig builds the SNS client from an AWS config.
func NewSNSNotifierFromConfig(cfg aws.Config) *SNSNotifier {
	return NewSNSNotifier(sns.NewFromConfig(cfg))
}

func (s *SNSNotifier) Name() string { return "sns" }

func (s *SNSNotifier) Publish(ctx context.Context, alert Alert) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(alert.Topic),
		Subject:  aws.String(alert.Subject),
		Message:  aws.String(alert.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.UserID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to sns: %w", err)
	}
	return nil
}
