package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "site")
	path := writeFile(t, "c.yaml", "name: ${SAMPLE_NAME}\nport: 80\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "site" || s.Port != 80 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeFile(t, "c.yaml", "name: x\nport: 0\n")

	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoad_DefaultValueSyntax(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "")
	path := writeFile(t, "c.yaml", "name: ${SAMPLE_UNSET:-fallback}\nport: ${SAMPLE_PORT:-8080}\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "fallback" || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadOptional_MissingFileValidatesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	s := sample{Name: "default", Port: 1}
	if err := LoadOptional(missing, &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" {
		t.Errorf("name = %q", s.Name)
	}

	bad := sample{}
	if err := LoadOptional(missing, &bad); err == nil {
		t.Error("invalid defaults should fail validation")
	}
}
