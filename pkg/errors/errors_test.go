package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with all defaults", func(t *testing.T) {
		err := NewError(ErrCodeFileNotFound, "no such file")
		if err == nil {
			t.Fatal("NewError returned nil")
		}
		if err.Code != ErrCodeFileNotFound {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodeFileNotFound)
		}
		if err.Message != "no such file" {
			t.Errorf("Message = %q, want %q", err.Message, "no such file")
		}
		if err.Category != CategoryFilesystem {
			t.Errorf("Category = %v, want %v", err.Category, CategoryFilesystem)
		}
		if err.Details == nil {
			t.Error("Details map is nil")
		}
		if err.Context == nil {
			t.Error("Context map is nil")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
		if err.Fatal {
			t.Error("FILE_NOT_FOUND must not be fatal")
		}
	})

	t.Run("invariant errors are fatal and carry a stack", func(t *testing.T) {
		err := NewError(ErrCodeInvariant, "parent missing")
		if !err.Fatal {
			t.Error("INVARIANT should be fatal")
		}
		if err.Retryable {
			t.Error("INVARIANT should never be retryable")
		}
		if err.Stack == "" {
			t.Error("INVARIANT should capture a stack")
		}
	})

	t.Run("formats message", func(t *testing.T) {
		err := Newf(ErrCodePathNotFound, "no entry at %s", "/a/b")
		if err.Message != "no entry at /a/b" {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

func TestGetCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     ErrorCode
		expected ErrorCategory
	}{
		{ErrCodeFileNotFound, CategoryFilesystem},
		{ErrCodeNotADir, CategoryFilesystem},
		{ErrCodePathUnavailable, CategoryFilesystem},
		{ErrCodeReadOnly, CategoryFilesystem},
		{ErrCodeQuotaExceeded, CategoryStorage},
		{ErrCodeSchema, CategorySchema},
		{ErrCodeSyntax, CategorySchema},
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeUnsupportedURI, CategoryConfiguration},
		{ErrCodeUnknown, CategoryInternal},
		{ErrCodeInvariant, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			result := GetCategory(tt.code)
			if result != tt.expected {
				t.Errorf("GetCategory(%v) = %v, want %v", tt.code, result, tt.expected)
			}
		})
	}
}

func TestIsRetryableByDefault(t *testing.T) {
	t.Parallel()

	if !IsRetryableByDefault(ErrCodeUnknown) {
		t.Error("UNKNOWN should be retryable by default")
	}

	nonRetryableCodes := []ErrorCode{
		ErrCodeFileNotFound,
		ErrCodeDirExists,
		ErrCodeReadOnly,
		ErrCodeQuotaExceeded,
		ErrCodeSchema,
		ErrCodeInvariant,
	}

	for _, code := range nonRetryableCodes {
		t.Run(string(code)+" should not be retryable", func(t *testing.T) {
			if IsRetryableByDefault(code) {
				t.Errorf("%v should not be retryable by default", code)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	storeErr := NewError(ErrCodeNotADir, "file")
	wrapped := fmt.Errorf("listing: %w", storeErr)

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"store error", storeErr, ErrCodeNotADir},
		{"wrapped store error", wrapped, ErrCodeNotADir},
		{"foreign error", errors.New("boom"), ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}

	if !HasCode(wrapped, ErrCodeNotADir) {
		t.Error("HasCode should see through wrapping")
	}
	if HasCode(nil, ErrCodeUnknown) {
		t.Error("HasCode(nil) must be false")
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	if !IsFatal(fmt.Errorf("copy: %w", NewError(ErrCodeInvariant, "broken"))) {
		t.Error("wrapped INVARIANT should be fatal")
	}
	if IsFatal(NewError(ErrCodePathNotFound, "missing")) {
		t.Error("PATH_NOT_FOUND should not be fatal")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("foreign errors are not fatal")
	}
}

func TestStoreError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{
			name: "with component and operation",
			err: &StoreError{
				Code:      ErrCodeFileNotFound,
				Component: "memfs",
				Operation: "read",
				Message:   "file does not exist",
			},
			want: "[memfs:read] FILE_NOT_FOUND: file does not exist",
		},
		{
			name: "with component only",
			err: &StoreError{
				Code:      ErrCodeInvalidConfig,
				Component: "config",
				Message:   "invalid value",
			},
			want: "[config] INVALID_CONFIG: invalid value",
		},
		{
			name: "minimal error",
			err: &StoreError{
				Code:    ErrCodeUnknown,
				Message: "something went wrong",
			},
			want: "UNKNOWN: something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.want {
				t.Errorf("Error() = %q, want %q", result, tt.want)
			}
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying cause")
	err := NewError(ErrCodeUnknown, "wrapper").WithCause(cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestStoreError_Is(t *testing.T) {
	t.Parallel()

	err1 := &StoreError{Code: ErrCodeFileNotFound, Message: "not found"}
	err2 := &StoreError{Code: ErrCodeFileNotFound, Message: "different message"}
	err3 := &StoreError{Code: ErrCodeInvalidConfig, Message: "invalid"}
	stdErr := errors.New("standard error")

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match with Is()")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match with Is()")
	}
	if err1.Is(stdErr) {
		t.Error("StoreError should not match standard error with Is()")
	}
}

func TestStoreError_String(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeUnknown, "slot write failed").
		WithComponent("blobfs").
		WithOperation("write").
		WithContext("path", "/jail/a").
		WithDetail("slot", "tree").
		WithCause(errors.New("disk full"))

	result := err.String()

	expectedParts := []string{
		"Code=UNKNOWN",
		"Category=internal",
		`Message="slot write failed"`,
		"Component=blobfs",
		"Operation=write",
		"Retryable=true",
		"Context=",
		"Details=",
		"Cause=",
	}

	for _, part := range expectedParts {
		if !strings.Contains(result, part) {
			t.Errorf("String() missing expected part: %q\nGot: %s", part, result)
		}
	}
}

func TestStoreError_JSON(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodePathUnavailable, "parent missing").
		WithContext("path", "/jail/a/b").
		WithContext("jail", "/jail")

	var parsed map[string]interface{}
	if parseErr := json.Unmarshal([]byte(err.JSON()), &parsed); parseErr != nil {
		t.Fatalf("JSON() returned invalid JSON: %v", parseErr)
	}

	if parsed["code"] != "PATH_UNAVAILABLE" {
		t.Errorf("JSON code = %v, want PATH_UNAVAILABLE", parsed["code"])
	}
	if parsed["message"] != "parent missing" {
		t.Errorf("JSON message = %v, want 'parent missing'", parsed["message"])
	}
	ctx, ok := parsed["context"].(map[string]interface{})
	if !ok {
		t.Fatalf("JSON context missing: %v", parsed)
	}
	if ctx["jail"] != "/jail" {
		t.Errorf("JSON context.jail = %v", ctx["jail"])
	}
}

func TestCaptureStack(t *testing.T) {
	t.Parallel()

	stack := CaptureStack(0)
	if stack == "" {
		t.Fatal("CaptureStack() returned empty string")
	}
	if !strings.Contains(stack, ":") {
		t.Error("Stack trace should contain file:line format")
	}
}

func TestDetailedDiagnostic(t *testing.T) {
	t.Parallel()

	err := NewError(ErrCodeReadOnly, "store is read-only").
		WithComponent("hostfs").
		WithContext("path", "/srv/x").
		WithCause(errors.New("mode ro"))

	diag := err.DetailedDiagnostic()
	for _, part := range []string{"Code: READ_ONLY", "Component: hostfs", "path: /srv/x", "Recommendation:", "Underlying cause: mode ro"} {
		if !strings.Contains(diag, part) {
			t.Errorf("DetailedDiagnostic() missing %q\n%s", part, diag)
		}
	}
}
