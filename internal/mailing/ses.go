package mailing

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/hyperdrip/internal/pkg/logger"
)

// SESSender delivers drip messages through AWS SES using the SDK v2.
type SESSender struct {
	fromName  string
	fromEmail string
	client    *sesv2.Client
}

// NewSESSender creates an SES transport. With empty credentials the
// default AWS credential chain (IAM role on ECS) is used.
func NewSESSender(accessKey, secretKey, region, fromName, fromEmail string) (*SESSender, error) {
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &SESSender{
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    sesv2.NewFromConfig(cfg),
	}, nil
}

// Send delivers a single drip message through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *DripMessage) (*SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("SES client not initialized - check credentials")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("lead_id"), Value: aws.String(msg.LeadID)},
			{Name: aws.String("message_number"), Value: aws.String(fmt.Sprintf("%d", msg.MessageNumber))},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Printf("[SES] Failed to send to %s: %v", logger.RedactEmail(msg.Email), err)
		return &SendResult{Success: false}, err
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	log.Printf("[SES] Sent message %d to %s (id: %s)", msg.MessageNumber, logger.RedactEmail(msg.Email), messageID)

	return &SendResult{Success: true, MessageID: messageID}, nil
}
