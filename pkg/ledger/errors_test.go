package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnknownKind, CodeUnknownKind},
		{ErrUnknownSection, CodeUnknownSection},
		{ErrSectionNotPrimaryFirst, CodePrimaryFirst},
		{ErrRecordNotFound, CodeNotFound},
		{ErrDuplicateKey, CodeConflict},
		{ErrRevisionConflict, CodeConflict},
		{&InvalidKeyError{Kind: "k", Field: "date", Reason: "missing"}, CodeInvalidKey},
		{&ValidationError{Kind: "k", Section: "s"}, CodeValidation},
		{&StoreError{Op: "save", Err: errors.New("disk full")}, CodeStoreUnavailable},
		{errors.New("something else"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CodeOf(tc.err), "error %v", tc.err)
	}

	// Wrapping must not change the code.
	wrapped := fmt.Errorf("merge attempt 2: %w", ErrRevisionConflict)
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestFromCode_RoundTripsSentinels(t *testing.T) {
	assert.ErrorIs(t, FromCode(CodeUnknownKind, "x"), ErrUnknownKind)
	assert.ErrorIs(t, FromCode(CodeUnknownSection, "x"), ErrUnknownSection)
	assert.ErrorIs(t, FromCode(CodePrimaryFirst, "x"), ErrSectionNotPrimaryFirst)
	assert.ErrorIs(t, FromCode(CodeNotFound, "x"), ErrRecordNotFound)
	assert.ErrorIs(t, FromCode(CodeConflict, "x"), ErrRevisionConflict)

	var ik *InvalidKeyError
	assert.ErrorAs(t, FromCode(CodeInvalidKey, "field missing"), &ik)

	var ve *ValidationError
	assert.ErrorAs(t, FromCode(CodeValidation, "bad type"), &ve)

	var se *StoreError
	assert.ErrorAs(t, FromCode(CodeStoreUnavailable, "down"), &se)

	// Every code maps back onto itself across the wire.
	for _, code := range []string{
		CodeUnknownKind, CodeUnknownSection, CodeInvalidKey, CodePrimaryFirst,
		CodeValidation, CodeNotFound, CodeConflict, CodeStoreUnavailable,
	} {
		assert.Equal(t, code, CodeOf(FromCode(code, "msg")), "code %s", code)
	}
}

func TestErrorMessages(t *testing.T) {
	ik := &InvalidKeyError{Kind: "sand_testing_note", Field: "date", Reason: "is not a recognized date"}
	assert.Contains(t, ik.Error(), "sand_testing_note")
	assert.Contains(t, ik.Error(), `"date"`)

	// Reconstructed on the client side, the kind and field are unknown.
	bare := &InvalidKeyError{Reason: "field missing"}
	assert.Equal(t, "invalid key: field missing", bare.Error())

	ve := &ValidationError{
		Kind:    "sand_testing_note",
		Section: "clay_parameters",
		Fields: []FieldError{
			{Path: "total_clay", Reason: "want number"},
			{Path: "vcm", Reason: "want number"},
		},
	}
	assert.Contains(t, ve.Error(), "total_clay: want number")
	assert.Contains(t, ve.Error(), "vcm: want number")
}
