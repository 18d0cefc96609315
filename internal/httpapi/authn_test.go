package httpapi

import (
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"case-insensitive scheme", "bearer abc.def.ghi", "abc.def.ghi", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"scheme only", "Bearer ", "", true},
		{"padded", "  Bearer abc.def.ghi  ", "abc.def.ghi", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPublicPathsExactMatch(t *testing.T) {
	public := []string{"/v1/auth/login", "/v1/auth/refresh", "/healthz", "/readyz", "/metrics", "/"}
	for _, p := range public {
		if !isPublicPath(p) {
			t.Fatalf("expected %q to be public", p)
		}
	}
	private := []string{"/v1/auth/verify", "/v1/workers", "/v1/products", "/v1/approvals", "/v1/auth/login/x"}
	for _, p := range private {
		if isPublicPath(p) {
			t.Fatalf("expected %q to require authentication", p)
		}
	}
}
