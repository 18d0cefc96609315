package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/workers/abc":               "/v1/workers/:id",
		"/v1/products/abc/stock":        "/v1/products/:id/stock",
		"/v1/approvals/abc/approve":     "/v1/approvals/:id/approve",
		"/v1/approvals/abc/reject":      "/v1/approvals/:id/reject",
		"/v1/approvals?status=pending":  "/v1/approvals",
		"/v1/auth/login":                "/v1/auth/login",
		"/healthz":                      "/healthz",
		"/v1/workers/abc?include=sales": "/v1/workers/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
