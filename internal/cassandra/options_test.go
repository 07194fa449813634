package cassandra

import "testing"

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantHost string
		wantPort int
	}{
		{"bare host", "cassandra1", "cassandra1", 9042},
		{"host with numeric port", "cassandra1:9142", "cassandra1", 9142},
		{"host with non-numeric suffix is treated as hostname", "cassandra1:main", "cassandra1:main", 9042},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := splitHostPort(tt.input, 9042)
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("splitHostPort(%q) = (%q, %d), want (%q, %d)", tt.input, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestValidateRequiresLocalDatacenter(t *testing.T) {
	opts := DefaultOptions()
	opts.ContactPoints = []string{"cassandra1"}

	if err := opts.Validate(); err == nil {
		t.Fatal("expected an error when LocalDatacenter is blank")
	}

	opts.LocalDatacenter = "dc1"
	if err := opts.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequiresContactPoints(t *testing.T) {
	opts := DefaultOptions()
	opts.LocalDatacenter = "dc1"

	if err := opts.Validate(); err == nil {
		t.Fatal("expected an error when no contact points are configured")
	}
}
