package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SESVerifier sends verification emails through AWS SES v2.
type SESVerifier struct {
	client *sesv2.Client
	from   string
	log    *zap.Logger
}

// NewSESVerifier builds an SES client from static credentials.
func NewSESVerifier(ctx context.Context, accessKey, secretKey, region, from string, log *zap.Logger) (*SESVerifier, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESVerifier{
		client: sesv2.NewFromConfig(cfg),
		from:   from,
		log:    log,
	}, nil
}

// SendVerificationEmail delivers the verification email through SES.
func (v *SESVerifier) SendVerificationEmail(ctx context.Context, to string, isReferral bool) error {
	subject := "Verify your email address"
	body := "Welcome! Please verify your email address to activate your account."
	if isReferral {
		subject = "You've been invited - verify your email"
		body = "Someone from your community invited you. Verify your email address to accept the invitation."
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(v.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := v.client.SendEmail(ctx, input); err != nil {
		v.log.Warn("verification email send failed",
			zap.String("to", to),
			zap.Bool("referral", isReferral),
			zap.Error(err),
		)
		return fmt.Errorf("sending verification email: %w", err)
	}

	v.log.Info("verification email sent",
		zap.String("to", to),
		zap.Bool("referral", isReferral),
	)
	return nil
}
