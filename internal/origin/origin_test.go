package origin

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in       string
		wantNorm string
		wantHost string
		wantOK   bool
	}{
		{"https://example.com", "https://example.com", "example.com", true},
		{"https://Example.COM:443", "https://example.com", "example.com", true},
		{"http://example.com:80", "http://example.com", "example.com", true},
		{"http://example.com:8080", "http://example.com:8080", "example.com:8080", true},
		{"https://example.com/", "https://example.com", "example.com", true},
		{"null", "null", "", true},
		{"", "", "", false},
		{"ws://example.com", "", "", false},
		{"https://example.com/path", "", "", false},
		{"https://user@example.com", "", "", false},
		{"https://example.com?x=1", "", "", false},
		{"https://example.com:0", "", "", false},
		{"not a url", "", "", false},
	}

	for _, tt := range tests {
		norm, host, ok := Normalize(tt.in)
		if ok != tt.wantOK || norm != tt.wantNorm || host != tt.wantHost {
			t.Errorf("Normalize(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, norm, host, ok, tt.wantNorm, tt.wantHost, tt.wantOK)
		}
	}
}

func TestAllowedWithAllowlist(t *testing.T) {
	allow := []string{"https://app.example.com"}

	if !Allowed("https://app.example.com", "relay.internal:8080", allow) {
		t.Fatalf("allowlisted origin denied")
	}
	if Allowed("https://evil.example.com", "relay.internal:8080", allow) {
		t.Fatalf("non-allowlisted origin allowed")
	}
	if !Allowed("https://anything.example", "relay.internal", []string{"*"}) {
		t.Fatalf("wildcard allowlist denied")
	}
	if !Allowed("", "relay.internal", allow) {
		t.Fatalf("missing Origin header must be allowed for non-browser clients")
	}
}

func TestAllowedSameHostDefault(t *testing.T) {
	if !Allowed("http://relay.example:8080", "relay.example:8080", nil) {
		t.Fatalf("same-host origin denied")
	}
	if Allowed("http://other.example", "relay.example:8080", nil) {
		t.Fatalf("cross-host origin allowed without allowlist")
	}
	if Allowed("null", "relay.example", nil) {
		t.Fatalf("null origin allowed without allowlist")
	}
	if !Allowed("https://relay.example:443", "relay.example", nil) {
		t.Fatalf("default-port origin should match bare host")
	}
}
