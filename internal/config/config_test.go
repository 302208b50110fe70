package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDirArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no trailing slash", "/scans/batch1", "/scans/batch1"},
		{"single trailing slash", "/scans/batch1/", "/scans/batch1"},
		{"multiple trailing slashes", "/scans/batch1///", "/scans/batch1"},
		{"root path", "/", "/"},
		{"relative path", "scans", "scans"},
		{"empty string", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDirArg(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeDirArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate_Compression(t *testing.T) {
	tests := []struct {
		name    string
		c       Compression
		wantErr bool
	}{
		{"lzw is valid", CompressionLZW, false},
		{"deflate is valid", CompressionDeflate, false},
		{"empty is invalid", "", true},
		{"unknown is invalid", "zip", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CheckOnly = true // skip path requirement
			cfg.Compression = tt.c
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Policy(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"auto is valid", PolicyAuto, false},
		{"prefer_base is valid", PolicyPreferBase, false},
		{"prefer_a is valid", PolicyPreferA, false},
		{"none is valid", PolicyNone, false},
		{"unknown is invalid", "best", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CheckOnly = true
			cfg.VariantPolicy = tt.p
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_QualityRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"heic lossless sentinel", func(c *Config) { c.HEICQuality = -1 }, false},
		{"heic max", func(c *Config) { c.HEICQuality = 100 }, false},
		{"heic below sentinel", func(c *Config) { c.HEICQuality = -2 }, true},
		{"heic above max", func(c *Config) { c.HEICQuality = 101 }, true},
		{"jpg min", func(c *Config) { c.JPGQuality = 1 }, false},
		{"jpg zero", func(c *Config) { c.JPGQuality = 0 }, true},
		{"similarity above one", func(c *Config) { c.SimilarityThreshold = 1.5 }, true},
		{"score gap negative", func(c *Config) { c.ScoreGap = -0.1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CheckOnly = true
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RequiresFormatAndInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without an input directory")
	}

	cfg = DefaultConfig()
	cfg.InputDir = "/scans"
	cfg.CreateTIFF = false
	cfg.CreateHEIC = false
	cfg.CreateJPG = false
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail with no output format enabled")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanmaster.yaml")
	body := "compression: deflate\ncreate_heic: true\nheic_quality: 85\nvariant_policy: prefer_base\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Compression != CompressionDeflate {
		t.Errorf("Compression = %q, want deflate", cfg.Compression)
	}
	if !cfg.CreateHEIC || cfg.HEICQuality != 85 {
		t.Errorf("HEIC settings not applied: %v %d", cfg.CreateHEIC, cfg.HEICQuality)
	}
	if cfg.VariantPolicy != PolicyPreferBase {
		t.Errorf("VariantPolicy = %q, want prefer_base", cfg.VariantPolicy)
	}
	// Untouched keys keep their defaults.
	if !cfg.CreateTIFF || cfg.JPGQuality != 90 {
		t.Error("defaults should survive a partial config file")
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanmaster.yaml")
	if err := os.WriteFile(path, []byte("compresion: lzw\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	if err := LoadFile(path, &cfg); err == nil {
		t.Error("LoadFile() should reject unknown keys")
	}
}
