package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_IsKind(t *testing.T) {
	cause := errors.New("socket closed")
	err := StorageFault("blob delete failed", cause)

	if !errors.Is(err, ErrStorageFault) {
		t.Error("StorageFault should match ErrStorageFault")
	}
	if !errors.Is(err, cause) {
		t.Error("StorageFault should match its cause")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("StorageFault should not match ErrNotFound")
	}

	missing := NotFoundWith("file content", cause)
	if !errors.Is(missing, ErrNotFound) || !errors.Is(missing, cause) {
		t.Error("NotFoundWith should match ErrNotFound and its cause")
	}
	if got := PublicMessage(missing); got != "file content not found" {
		t.Errorf("PublicMessage(NotFoundWith) = %q", got)
	}

	wrapped := fmt.Errorf("purge: %w", NotFound("file"))
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped NotFound should match ErrNotFound")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", InvalidInput("name is required"), http.StatusBadRequest},
		{"duplicate", DuplicateIdentity("email taken"), http.StatusConflict},
		{"auth", AuthenticationFailed(), http.StatusUnauthorized},
		{"not found", NotFound("folder"), http.StatusNotFound},
		{"conflict", Conflict("changed"), http.StatusConflict},
		{"too large", TooLarge("big"), http.StatusRequestEntityTooLarge},
		{"content missing", NotFoundWith("file content", errors.New("gone")), http.StatusNotFound},
		{"storage", StorageFault("down", errors.New("x")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(NotFound("file")); got != "file not found" {
		t.Errorf("PublicMessage(NotFound) = %q", got)
	}
	if got := PublicMessage(StorageFault("gridfs chunk missing", errors.New("x"))); got != "internal error" {
		t.Errorf("PublicMessage(StorageFault) = %q, want generic message", got)
	}
	if got := PublicMessage(errors.New("raw driver error")); got != "internal error" {
		t.Errorf("PublicMessage(plain) = %q, want generic message", got)
	}
}
