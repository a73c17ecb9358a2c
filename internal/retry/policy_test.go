package retry

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want 30s", p.ConnectTimeout)
	}
	if p.ConnectRetries != 3 {
		t.Errorf("ConnectRetries = %d, want 3", p.ConnectRetries)
	}
	if p.ReadTimeout != 3600*time.Second {
		t.Errorf("ReadTimeout = %v, want 3600s", p.ReadTimeout)
	}
	if p.MaxRedirects != 30 {
		t.Errorf("MaxRedirects = %d, want 30", p.MaxRedirects)
	}
	if p.OperationTimeout != 3600*time.Second {
		t.Errorf("OperationTimeout = %v, want 3600s", p.OperationTimeout)
	}
	if p.StatusTimeout != 900*time.Second {
		t.Errorf("StatusTimeout = %v, want 900s", p.StatusTimeout)
	}
	if p.NameURICacheTTL != 300*time.Second {
		t.Errorf("NameURICacheTTL = %v, want 300s", p.NameURICacheTTL)
	}
}

func TestPolicyWithDefaults(t *testing.T) {
	p := Policy{ConnectRetries: 5}.WithDefaults()

	if p.ConnectRetries != 5 {
		t.Errorf("ConnectRetries = %d, want 5 (explicit override preserved)", p.ConnectRetries)
	}
	if p.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want default 30s", p.ConnectTimeout)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"defaults valid", DefaultPolicy(), false},
		{"negative connect retries", Policy{ConnectRetries: -1}, true},
		{"negative timeout", Policy{ConnectTimeout: -1 * time.Second}, true},
		{"zero value valid", Policy{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
