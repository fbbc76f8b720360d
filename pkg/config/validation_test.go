package config

import (
	"strings"
	"testing"

	"github.com/marmos91/catalogfs/pkg/catalog/local"
)

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "InvalidLogLevel",
			mutate: func(c *Config) { c.Logging.Level = "TRACE" },
			want:   "Level",
		},
		{
			name:   "PortOutOfRange",
			mutate: func(c *Config) { c.Catalog.Port = 70000 },
			want:   "Port",
		},
		{
			name:   "EmptyZone",
			mutate: func(c *Config) { c.Catalog.Zone = "" },
			want:   "Zone",
		},
		{
			name:   "UnknownPasswordSource",
			mutate: func(c *Config) { c.Catalog.Password.Source = "vault" },
			want:   "Source",
		},
		{
			name:   "EmptyConfigPassword",
			mutate: func(c *Config) { c.Catalog.Password.Value = "" },
			want:   "value is empty",
		},
		{
			name:   "RelativeCatalogRoot",
			mutate: func(c *Config) { c.Session.CatalogRoot = "zone" },
			want:   "CatalogRoot",
		},
		{
			name:   "UnknownMetadataType",
			mutate: func(c *Config) { c.Backend.Metadata.Type = "postgres" },
			want:   "Type",
		},
		{
			name:   "BcryptCostTooLow",
			mutate: func(c *Config) { c.Backend.BcryptCost = 2 },
			want:   "BcryptCost",
		},
		{
			name: "DuplicateUser",
			mutate: func(c *Config) {
				c.Backend.Users = []local.User{{Name: "a", Password: "x"}, {Name: "a", Password: "y"}}
			},
			want: "duplicate user",
		},
		{
			name:   "UserWithoutPassword",
			mutate: func(c *Config) { c.Backend.Users = []local.User{{Name: "a"}} },
			want:   "needs password",
		},
		{
			name:   "S3WithoutBucket",
			mutate: func(c *Config) { c.Backend.Content.Type = "s3" },
			want:   "bucket is required",
		},
		{
			name:   "MetricsPortOutOfRange",
			mutate: func(c *Config) { c.Metrics.Port = -1 },
			want:   "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}
