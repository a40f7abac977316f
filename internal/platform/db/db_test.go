package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
mode: dev
database:
  host: 127.0.0.1
  port: 3306
  user: arms
  password: arms
  dbname: arms
auth:
  jwt_secret: "test-secret"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Addr != ":8443" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTLHours != 24 {
		t.Errorf("token_ttl_hours = %d", cfg.Auth.TokenTTLHours)
	}
	if cfg.Auth.MinPasswordLen != 8 {
		t.Errorf("min_password_len = %d", cfg.Auth.MinPasswordLen)
	}
	if cfg.Rental.DefaultDueDays != 7 {
		t.Errorf("default_due_days = %d", cfg.Rental.DefaultDueDays)
	}
	if cfg.Rental.SingleRentalPerEmployee {
		t.Error("single_rental_per_employee should default to false")
	}
}

func TestLoadConfig_Explicit(t *testing.T) {
	path := writeConfig(t, `
mode: release
server:
  addr: ":9000"
database:
  host: db.internal
  port: 3307
  user: arms
  password: secret
  dbname: arms_prod
auth:
  jwt_secret: "prod-secret"
  token_ttl_hours: 8
  min_password_len: 12
rental:
  default_due_days: 14
  single_rental_per_employee: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Auth.TokenTTLHours != 8 || cfg.Rental.DefaultDueDays != 14 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Rental.SingleRentalPerEmployee {
		t.Error("single_rental_per_employee should be true")
	}
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
mode: dev
database:
  host: 127.0.0.1
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("empty jwt_secret should be rejected")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should be an error")
	}
}

func TestDSN(t *testing.T) {
	got := dsn(DatabaseConfig{Host: "127.0.0.1", Port: 3306, Username: "arms", Password: "pw", DBName: "arms"})
	want := "arms:pw@tcp(127.0.0.1:3306)/arms?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC"
	if got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}
