package publisher

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// AWSCredentials are optional static credentials. When empty the default
// provider chain (environment, shared config, instance role) is used.
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

func loadAWSConfig(ctx context.Context, region string, creds AWSCredentials) (aws.Config, error) {
	if region == "" {
		return aws.Config{}, errors.ConfigError("AWS region is required")
	}
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(region)}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		)))
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.ConfigError("failed to load AWS config: " + err.Error())
	}
	return cfg, nil
}

// SNSPublisher publishes messages to an SNS topic.
type SNSPublisher struct {
	client   snsAPI
	topicARN string
	logger   logging.Logger
}

// NewSNSPublisher loads AWS config for region, using creds when they are set
func NewSNSPublisher(ctx context.Context, region, topicARN string, creds AWSCredentials, logger logging.Logger) (*SNSPublisher, error) {
	if topicARN == "" {
		return nil, errors.ConfigError("SNS publisher requires a topic ARN")
	}
	cfg, err := loadAWSConfig(ctx, region, creds)
	if err != nil {
		return nil, err
	}
	return newSNSPublisher(sns.NewFromConfig(cfg), topicARN, logger), nil
}

func newSNSPublisher(client snsAPI, topicARN string, logger logging.Logger) *SNSPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

func (p *SNSPublisher) Name() string { return "sns" }

func (p *SNSPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}

	messageAttributes := make(map[string]snsTypes.MessageAttributeValue)
	for k, v := range attributes(msg) {
		messageAttributes[k] = snsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(msg.Body)),
		MessageAttributes: messageAttributes,
	}
	if msg.Topic != "" {
		input.Subject = aws.String(msg.Topic)
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return errors.ConnectionError("failed to publish to SNS", err)
	}

	p.logger.Debug("Message published to SNS",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "sns_message_id", Value: aws.ToString(result.MessageId)},
	)
	return nil
}

func (p *SNSPublisher) Close() error { return nil }

// SQSPublisher sends messages to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	logger   logging.Logger
}

// NewSQSPublisher loads AWS config for region, using creds when they are set
func NewSQSPublisher(ctx context.Context, region, queueURL string, creds AWSCredentials, logger logging.Logger) (*SQSPublisher, error) {
	if queueURL == "" {
		return nil, errors.ConfigError("SQS publisher requires a queue URL")
	}
	cfg, err := loadAWSConfig(ctx, region, creds)
	if err != nil {
		return nil, err
	}
	return newSQSPublisher(sqs.NewFromConfig(cfg), queueURL, logger), nil
}

func newSQSPublisher(client sqsAPI, queueURL string, logger logging.Logger) *SQSPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

func (p *SQSPublisher) Name() string { return "sqs" }

func (p *SQSPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}

	messageAttributes := make(map[string]types.MessageAttributeValue)
	for k, v := range attributes(msg) {
		messageAttributes[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	result, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(msg.Body)),
		MessageAttributes: messageAttributes,
	})
	if err != nil {
		return errors.ConnectionError("failed to send message to SQS", err)
	}

	p.logger.Debug("Message sent to SQS",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "sqs_message_id", Value: aws.ToString(result.MessageId)},
	)
	return nil
}

func (p *SQSPublisher) Close() error { return nil }
