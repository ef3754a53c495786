package qdrant

import (
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		hasDim   bool
		wantCode ConfigErrorCode
	}{
		{
			name:   "valid",
			cfg:    Config{URL: "http://qdrant:6333", VectorDim: 768},
			hasDim: true,
		},
		{
			name:     "missing url",
			cfg:      Config{VectorDim: 768},
			hasDim:   true,
			wantCode: ConfigErrorMissingURL,
		},
		{
			name:     "relative url",
			cfg:      Config{URL: "qdrant:6333", VectorDim: 768},
			hasDim:   true,
			wantCode: ConfigErrorInvalidURL,
		},
		{
			name:     "missing dim",
			cfg:      Config{URL: "http://qdrant:6333"},
			hasDim:   false,
			wantCode: ConfigErrorMissingVectorDim,
		},
		{
			name:     "invalid dim",
			cfg:      Config{URL: "http://qdrant:6333", VectorDim: -1},
			hasDim:   true,
			wantCode: ConfigErrorInvalidVectorDim,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg, tc.hasDim)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("ValidateConfig: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got=%T (%v)", err, err)
			}
			if cfgErr.Code != tc.wantCode {
				t.Fatalf("error code: want=%q got=%q", tc.wantCode, cfgErr.Code)
			}
		})
	}
}

func TestResolveConfigFromEnv(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_VECTOR_DIM", "768")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.VectorDim != 768 {
		t.Fatalf("vector dim: want=768 got=%d", cfg.VectorDim)
	}

	t.Setenv("QDRANT_VECTOR_DIM", "not-a-number")
	if _, err := ResolveConfigFromEnv(); err == nil {
		t.Fatalf("ResolveConfigFromEnv: want error for bad dim")
	}
}
