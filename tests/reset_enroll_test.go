//go:build e2e

package tests

import (
	"net/http"
	"strings"
	"testing"
)

func TestEnroll(t *testing.T) {
	// Act
	out := enroll(t, "alice")

	// Assert
	if out.Account != "alice" {
		t.Fatalf("expected account alice, got %q", out.Account)
	}
	if !strings.HasPrefix(out.URI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", out.URI)
	}
}

func TestEnroll_RequiresAdminKey(t *testing.T) {
	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/reset/enroll", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	}, nil)

	// Assert
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", status, body)
	}
}

func TestEnroll_UnknownAccount(t *testing.T) {
	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/reset/enroll", map[string]string{
		"username": "nobody_here",
		"email":    "nobody@example.com",
	}, adminHeaders())

	// Assert
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", status, body)
	}
}

func TestListEnrollments(t *testing.T) {
	// Arrange
	enroll(t, "alice")

	// Act
	status, body := doJSON(t, http.MethodGet, "/api/v1/reset/enrollments", nil, adminHeaders())

	// Assert
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var items []struct {
		Account string `json:"account"`
	}
	decodeSuccess(t, body, &items)

	found := false
	for _, it := range items {
		if it.Account == "alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("alice missing from enrollments: %s", body)
	}
}
