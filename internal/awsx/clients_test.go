package awsx

import (
	"context"
	"os"
	"testing"
)

func TestRegion_Default(t *testing.T) {
	os.Setenv("AWS_REGION", "")

	if got := Region(); got != "ap-southeast-1" {
		t.Fatalf("expected default region 'ap-southeast-1', got %s", got)
	}
}

func TestRegion_FromEnv(t *testing.T) {
	os.Setenv("AWS_REGION", "ap-southeast-2")
	defer os.Unsetenv("AWS_REGION")

	if got := Region(); got != "ap-southeast-2" {
		t.Fatalf("region mismatch, got %s", got)
	}
}

func TestLoadAWSConfig_UsesResolvedRegion(t *testing.T) {
	os.Setenv("AWS_REGION", "ap-southeast-2")
	defer os.Unsetenv("AWS_REGION")

	cfg, err := LoadAWSConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Region != "ap-southeast-2" {
		t.Fatalf("region mismatch, got %s", cfg.Region)
	}
}
