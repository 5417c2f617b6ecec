package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// DefaultRegion is used for account-level calls (region listing, identity)
// when nothing else resolves a region.
const DefaultRegion = "us-east-1"

// LogsAPI is the subset of the CloudWatch Logs API we use.
type LogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	StartQuery(ctx context.Context, params *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, params *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
	StopQuery(ctx context.Context, params *cloudwatchlogs.StopQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StopQueryOutput, error)
}

// RegionsAPI is the subset of the EC2 API we use.
type RegionsAPI interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// LogsProvider hands out a CloudWatch Logs client bound to a region.
type LogsProvider interface {
	Logs(region string) LogsAPI
}

// AuthOptions carries optional overrides for AWS config resolution.
type AuthOptions struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewLoadOptions builds config load options from AuthOptions.
// A profile (explicit or AWS_PROFILE) takes precedence over static keys.
// Static keys come from the options or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY.
// With neither, the SDK default chain (instance role, SSO, ...) applies.
func NewLoadOptions(o AuthOptions) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}

	profile := o.Profile
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile != "" {
		return append(opts, config.WithSharedConfigProfile(profile))
	}

	key, secret, token := o.AccessKeyID, o.SecretAccessKey, o.SessionToken
	if key == "" || secret == "" {
		key = os.Getenv("AWS_ACCESS_KEY_ID")
		secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
		token = os.Getenv("AWS_SESSION_TOKEN")
	}
	if key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, token),
		))
	}
	return opts
}

// Factory owns the resolved AWS config and lazily builds service clients.
type Factory struct {
	cfg aws.Config

	mu   sync.Mutex
	logs map[string]*cloudwatchlogs.Client
	ec2  *ec2.Client
}

// NewFactory loads AWS configuration and returns a Factory.
func NewFactory(ctx context.Context, o AuthOptions) (*Factory, error) {
	cfg, err := config.LoadDefaultConfig(ctx, NewLoadOptions(o)...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewFactoryFromConfig(cfg), nil
}

// NewFactoryFromConfig wraps an already resolved aws.Config.
func NewFactoryFromConfig(cfg aws.Config) *Factory {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return &Factory{cfg: cfg, logs: make(map[string]*cloudwatchlogs.Client)}
}

// Region returns the home region of the factory.
func (f *Factory) Region() string { return f.cfg.Region }

// Logs returns the CloudWatch Logs client for region, creating it once.
func (f *Factory) Logs(region string) LogsAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.logs[region]; ok {
		return c
	}
	c := cloudwatchlogs.NewFromConfig(f.cfg, func(o *cloudwatchlogs.Options) {
		o.Region = region
	})
	f.logs[region] = c
	return c
}

// EC2 returns the EC2 client for the home region.
func (f *Factory) EC2() *ec2.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ec2 == nil {
		f.ec2 = ec2.NewFromConfig(f.cfg)
	}
	return f.ec2
}

// CallerIdentity describes the principal behind the loaded credentials.
type CallerIdentity struct {
	Account string
	Arn     string
	UserID  string
}

// CallerIdentity asks STS who we are.
func (f *Factory) CallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	out, err := sts.NewFromConfig(f.cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}
	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// ErrorCode returns the AWS API error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
