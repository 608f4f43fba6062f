package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/smartfix-api/internal/domain"
)

// API is the subset of the SNS client the publisher needs.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher mirrors notification broadcasts to an SNS topic so that other
// services can subscribe, and sends SMS for notifications that ask for it.
type Publisher struct {
	client   API
	topicARN string
}

func NewClient(awsCfg aws.Config, region, endpoint string) *sns.Client {
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.Region = region
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func NewPublisher(client API, topicARN string) *Publisher {
	return &Publisher{client: client, topicARN: topicARN}
}

type envelope struct {
	Event        string                  `json:"event"`
	Topic        string                  `json:"topic"`
	Notification domain.NotificationPush `json:"notification"`
}

func (p *Publisher) Name() string { return "sns" }

// Publish sends one message to the topic. SNS fans out asynchronously, so a
// successful publish counts as sent and pending rather than delivered.
func (p *Publisher) Publish(ctx context.Context, topic string, n *domain.Notification) (domain.DeliveryReport, error) {
	body, err := json.Marshal(envelope{Event: "notification", Topic: topic, Notification: n.Push()})
	if err != nil {
		return domain.DeliveryReport{Failed: 1}, fmt.Errorf("marshal sns message: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(truncate(n.Title, 100)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"topic":    {DataType: aws.String("String"), StringValue: aws.String(topic)},
			"priority": {DataType: aws.String("String"), StringValue: aws.String(n.Priority)},
			"category": {DataType: aws.String("String"), StringValue: aws.String(n.Category)},
		},
	})
	if err != nil {
		return domain.DeliveryReport{Failed: 1}, fmt.Errorf("sns publish: %w", err)
	}
	return domain.DeliveryReport{Sent: 1, Pending: 1}, nil
}

// SendSMS delivers a text message directly to a phone number.
func (p *Publisher) SendSMS(ctx context.Context, to, message string) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns sms: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
