package nats

import "testing"

func TestLoadTLS(t *testing.T) {
	cfg, err := loadTLS(Config{})
	if err != nil || cfg != nil {
		t.Errorf("no files: got %v, %v; want nil, nil", cfg, err)
	}

	if _, err := loadTLS(Config{CertFile: "client.pem"}); err == nil {
		t.Error("expected error for cert without key")
	}

	if _, err := loadTLS(Config{CAFile: "/nonexistent/ca.pem"}); err == nil {
		t.Error("expected error for missing CA file")
	}
}
