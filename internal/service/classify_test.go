package service

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/aws/lambda/my-fn", "lambda"},
		{"/aws/apigateway/welcome", "apigateway"},
		{"/aws/ecs/containerinsights/prod/performance", "ecs"},
		{"/aws/eks/cluster/cluster", "eks"},
		{"/aws/rds/instance/db/error", "rds"},
		{"/aws/codebuild/project", "codebuild"},
		{"CloudTrail/prod", "cloudtrail"},
		{"/aws/custom/foo", "custom"},
		{"/aws/vendedlogs", "vendedlogs"},
		{"/aws/", "aws"},
		{"/aws//x", "aws"},
		{"random-name", "other"},
		{"aws/lambda/no-leading-slash", "other"},
		{"cloudtrail/lowercase", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	got := Set([]string{"/aws/lambda/a", "x", "/aws/lambda/b", "CloudTrail/t"})
	want := []string{"cloudtrail", "lambda", "other"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Set() = %v, want %v", got, want)
	}
	if got := Set(nil); got == nil || len(got) != 0 {
		t.Fatalf("Set(nil) = %#v, want empty non-nil", got)
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{"lambda", " ", "rds "})
	if !f.Allows("/aws/lambda/fn") || !f.Allows("/aws/rds/db") {
		t.Fatalf("expected lambda and rds groups to pass")
	}
	if f.Allows("/aws/ecs/svc") {
		t.Fatalf("expected ecs group to be filtered out")
	}
	if !NewFilter(nil).Allows("anything") {
		t.Fatalf("empty filter should allow everything")
	}
}
