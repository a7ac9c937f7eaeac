package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInferConfigFiletype(t *testing.T) {
	tests := []struct {
		path     string
		expected ConfigFileType
	}{
		{"testdata/config.json", FileTypeJSON},
		{"testdata/config.yaml", FileTypeYAML},
		{"testdata/config.yml", FileTypeYAML},
		{"testdata/config.toml", FileTypeTOML},
		{"testdata/config.hcl", FileTypeHCL},
		{"testdata/CONFIG.HCL", FileTypeHCL},
		// unknown extension should default to JSON
		// unless a default is provided
		{"testdata/config.unknown", FileTypeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := inferConfigFiletype(tt.path)
			if got != tt.expected {
				t.Errorf("inferConfigFiletype(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}

	if got := inferConfigFiletype("provision", FileTypeHCL); got != FileTypeHCL {
		t.Errorf("expected explicit default to win, got %v", got)
	}
}

func TestConfigFileTypeValid(t *testing.T) {
	for _, ft := range []ConfigFileType{FileTypeJSON, FileTypeYAML, FileTypeTOML, FileTypeHCL} {
		if err := ft.Valid(); err != nil {
			t.Errorf("expected %s to be valid: %v", ft, err)
		}
	}

	if err := ConfigFileType("ini").Valid(); err == nil {
		t.Errorf("expected ini to be rejected")
	}
}

func TestParserForConfigFiles(t *testing.T) {
	baseDir, err := filepath.Abs("testdata")
	if err != nil {
		t.Fatalf("failed to get absolute path for testdata: %v", err)
	}

	tests := []struct {
		filename     string
		expectedType ConfigFileType
		expected     string
	}{
		{"config.json", FileTypeJSON, "json-1.0"},
		{"config.yaml", FileTypeYAML, "yaml-1.0"},
		{"config.toml", FileTypeTOML, "toml-1.0"},
		{"config.hcl", FileTypeHCL, "hcl-1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			path := filepath.Join(baseDir, tt.filename)

			fileType := inferConfigFiletype(path)
			if fileType != tt.expectedType {
				t.Errorf("for %q, expected file type %v, got %v", tt.filename, tt.expectedType, fileType)
			}

			content, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read file %q: %v", path, err)
			}

			data, err := fileType.Parser().Unmarshal(content)
			if err != nil {
				t.Fatalf("failed to parse file %q: %v", path, err)
			}

			if val, ok := data["version"]; !ok {
				t.Errorf("version not found in parsed data for file %q", tt.filename)
			} else if val != tt.expected {
				t.Errorf("for file %q, expected version %q, got %v", tt.filename, tt.expected, val)
			}
		})
	}
}
