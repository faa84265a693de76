package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestTrailError_Error(t *testing.T) {
	err := &TrailError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "entry not found",
	}

	expected := "NOT_FOUND: entry not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("query is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "query is required" {
		t.Errorf("Message = %q, want %q", err.Message, "query is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("shot-001.png")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "shot-001.png" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "shot-001.png")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/missing.jsonl")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "/tmp/missing.jsonl" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewHashFailed(t *testing.T) {
	cause := fmt.Errorf("image: unknown format")
	err := NewHashFailed("/shots/a.png", cause)

	if err.Code != ErrHashFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrHashFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestNewExtraction(t *testing.T) {
	err := NewExtraction("a.png", fmt.Errorf("timeout"))

	if err.Code != ErrExtraction {
		t.Errorf("Code = %q, want %q", err.Code, ErrExtraction)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Details["filename"] != "a.png" {
		t.Errorf("Details[filename] = %v, want a.png", err.Details["filename"])
	}
}

func TestNewIndexWriteFailed(t *testing.T) {
	err := NewIndexWriteFailed("dedup index", fmt.Errorf("disk full"))

	if err.Code != ErrIndexWriteFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrIndexWriteFailed)
	}
	if err.Message != "dedup index write failed: disk full" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("export")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Status != 499 {
		t.Errorf("Status = %d, want 499", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("database connection failed")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		// Message should be generic (not leak internal details)
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrExtraction) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-TrailError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-TrailError")
		}
	})

	t.Run("wrapped TrailError", func(t *testing.T) {
		inner := NewNotFound("test")
		wrapped := fmt.Errorf("entries[0]: %w", inner)
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped TrailError")
		}
		if _, ok := As(wrapped); !ok {
			t.Error("As() ok = false, want true")
		}
	})
}
