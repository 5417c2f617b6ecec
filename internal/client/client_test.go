package client_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/smithy-go"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/client"
)

func TestNewLoadOptions(t *testing.T) {
	tests := []struct {
		name    string
		options client.AuthOptions
		env     map[string]string // value "" means unset
		wantLen int
	}{
		{
			name:    "no region or profile, no env",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 0,
		},
		{
			name:    "with region",
			options: client.AuthOptions{Region: "us-east-1"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "with profile flag",
			options: client.AuthOptions{Profile: "my-profile"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "with AWS_PROFILE env",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "env-profile"},
			wantLen: 1,
		},
		{
			name:    "profile overrides static creds",
			options: client.AuthOptions{Profile: "my-profile"},
			env:     map[string]string{"AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 1,
		},
		{
			name:    "with static creds from env",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 1,
		},
		{
			name:    "with explicit static creds",
			options: client.AuthOptions{AccessKeyID: "key", SecretAccessKey: "secret"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "key without secret is ignored",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 0,
		},
		{
			name:    "with region and profile",
			options: client.AuthOptions{Region: "us-west-2", Profile: "another-profile"},
			env:     map[string]string{},
			wantLen: 2,
		},
		{
			name:    "with region and static creds",
			options: client.AuthOptions{Region: "us-west-2"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := client.NewLoadOptions(tt.options)
			if len(opts) != tt.wantLen {
				t.Fatalf("NewLoadOptions() returned %d options, want %d", len(opts), tt.wantLen)
			}
		})
	}
}

func TestNewLoadOptionsAppliesStaticCredentials(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	var lo config.LoadOptions
	for _, fn := range client.NewLoadOptions(client.AuthOptions{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}) {
		if err := fn(&lo); err != nil {
			t.Fatalf("apply option: %v", err)
		}
	}
	if lo.Credentials == nil {
		t.Fatalf("expected a credentials provider")
	}
	creds, err := lo.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKID" || creds.SecretAccessKey != "SECRET" {
		t.Fatalf("creds = %+v", creds)
	}
}

func TestFactoryCachesLogsClientPerRegion(t *testing.T) {
	f := client.NewFactoryFromConfig(aws.Config{})
	if f.Region() != client.DefaultRegion {
		t.Fatalf("Region() = %q, want %q", f.Region(), client.DefaultRegion)
	}

	a1 := f.Logs("eu-west-1")
	a2 := f.Logs("eu-west-1")
	b := f.Logs("ap-northeast-1")
	if a1 != a2 {
		t.Fatalf("expected the same client for repeated region")
	}
	if a1 == b {
		t.Fatalf("expected distinct clients per region")
	}
	if got := a1.(*cloudwatchlogs.Client).Options().Region; got != "eu-west-1" {
		t.Fatalf("client region = %q, want eu-west-1", got)
	}
	if f.EC2() != f.EC2() {
		t.Fatalf("expected EC2 client to be cached")
	}
}

func TestErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api error", apiErr, "AccessDeniedException"},
		{"wrapped api error", fmt.Errorf("describe: %w", apiErr), "AccessDeniedException"},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.ErrorCode(tt.err); got != tt.want {
				t.Fatalf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}
