package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KinKeep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// TestNew
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"member not found", errors.ErrCodeMemberNotFound, "member 42 not found"},
		{"invalid param", errors.CodeInvalidParam, "first name must not be empty"},
		{"import busy", errors.ErrCodeImportInProgress, "import running"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWrap
// ─────────────────────────────────────────────────────────────────────────────

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("dial tcp: connection refused")
	wrapped := errors.Wrap(root, errors.ErrCodeCacheError, "redis unreachable")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.ErrCodeCacheError, wrapped.Code)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_PreservesInnerCodeWhenUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeMemberNotFound, "not found")
	outer := errors.Wrap(inner, errors.CodeUnknown, "adding context")

	assert.Equal(t, errors.ErrCodeMemberNotFound, outer.Code)
}

func TestWrap_UnknownOnForeignErrorBecomesInternal(t *testing.T) {
	t.Parallel()

	outer := errors.Wrap(fmt.Errorf("boom"), errors.CodeUnknown, "context")
	assert.Equal(t, errors.ErrCodeInternal, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeMemberNotFound, "not found")
	outer := errors.Wrap(inner, errors.CodeInternal, "unexpected state")

	assert.Equal(t, errors.CodeInternal, outer.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// TestError_Method
// ─────────────────────────────────────────────────────────────────────────────

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeMemberNotFound, "member not found")
	assert.Equal(t, "[MEM_001] member not found", ae.Error())

	detailed := ae.WithDetail("id=abc")
	assert.Equal(t, "[MEM_001] member not found: id=abc", detailed.Error())

	caused := detailed.WithCause(stderrors.New("key missing"))
	assert.Equal(t, "[MEM_001] member not found: id=abc: key missing", caused.Error())
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.NotFound("resource missing")
	detailed := original.WithDetail("id=42")

	assert.Empty(t, original.Detail)
	assert.Equal(t, "id=42", detailed.Detail)
	assert.Equal(t, original.Code, detailed.Code)
}

func TestWithDetail_NilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_TraversesChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeDocumentCorrupt, "bad json")
	outer := errors.Wrap(inner, errors.ErrCodeStorageError, "load failed")
	wrappedStd := fmt.Errorf("cli: %w", outer)

	assert.True(t, errors.IsCode(wrappedStd, errors.ErrCodeStorageError))
	assert.True(t, errors.IsCode(wrappedStd, errors.ErrCodeDocumentCorrupt))
	assert.False(t, errors.IsCode(wrappedStd, errors.ErrCodeNotFound))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeNotFound))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic", errors.NotFound("x"), true},
		{"member", errors.New(errors.ErrCodeMemberNotFound, "x"), true},
		{"document", errors.New(errors.ErrCodeDocumentNotFound, "x"), true},
		{"wrapped", fmt.Errorf("outer: %w", errors.NotFound("x")), true},
		{"internal", errors.Internal("x"), false},
		{"std", stderrors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("x")))
	assert.Equal(t, errors.ErrCodeConflict, errors.GetCode(errors.Conflict("x")))
	assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(errors.Validation("x")))
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetCode(errors.Unavailable("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Code tables
// ─────────────────────────────────────────────────────────────────────────────

func TestHTTPStatusForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, errors.HTTPStatusForCode(errors.ErrCodeMemberNotFound))
	assert.Equal(t, http.StatusConflict, errors.HTTPStatusForCode(errors.ErrCodeImportInProgress))
	assert.Equal(t, http.StatusUnprocessableEntity, errors.HTTPStatusForCode(errors.ErrCodeMemberInvalid))
	assert.Equal(t, http.StatusInternalServerError, errors.HTTPStatusForCode(errors.ErrorCode("NOPE_999")))
}

func TestEveryStatusCodeHasMessage(t *testing.T) {
	t.Parallel()

	for code := range errors.ErrorCodeHTTPStatus {
		_, ok := errors.ErrorCodeMessage[code]
		assert.True(t, ok, "missing message for %s", code)
	}
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode(errors.ErrorCode("NOPE_999")))
}

func TestClientServerClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsClientError(errors.ErrCodeStoryEmpty))
	assert.False(t, errors.IsServerError(errors.ErrCodeStoryEmpty))
	assert.True(t, errors.IsServerError(errors.ErrCodeImportFailed))
	assert.Equal(t, "MEM", errors.ModuleForCode(errors.ErrCodeMemberInvalid))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode(errors.CodeOK))
}
