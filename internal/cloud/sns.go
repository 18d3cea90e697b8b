package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient wraps AWS SNS for farm alert notifications.
type SNSClient struct {
	svc      *sns.Client
	topicArn string
	ctx      context.Context
}

// NewSNSClient creates a new SNS client instance.
func NewSNSClient(region, topicArn string) (*SNSClient, error) {
	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &SNSClient{
		svc:      sns.NewFromConfig(cfg),
		topicArn: topicArn,
		ctx:      ctx,
	}, nil
}

// SendAlert publishes a notification to the alert topic.
func (c *SNSClient) SendAlert(subject, message string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	}

	if _, err := c.svc.Publish(c.ctx, input); err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// SendLowWaterAlert reports a tank running dry.
func (c *SNSClient) SendLowWaterAlert(deviceName string, level float64) error {
	subject := fmt.Sprintf("Farm Alert: low water level on %s", deviceName)
	message := fmt.Sprintf(
		"Low Water Level\n\n"+
			"Device: %s\n"+
			"Average tank level: %.1f m\n"+
			"Time: %s\n\n"+
			"Check the reservoir and the suction pump.",
		deviceName,
		level,
		time.Now().Format(time.RFC3339),
	)

	return c.SendAlert(subject, message)
}
