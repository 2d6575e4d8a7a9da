package air

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseErrorKindString(t *testing.T) {
	assert.Equal(t, "InvalidContentType", ParseErrInvalidContentType.String())
	assert.Equal(t, "Other", ParseErrOther.String())
	assert.Equal(t, "Unknown", ParseErrorKind(99).String())
}

func TestParseErrorErrorIncludesField(t *testing.T) {
	e := &ParseError{Kind: ParseErrDeserialize, Field: "age", Cause: errors.New("bad int")}
	assert.Contains(t, e.Error(), "age")
	assert.Contains(t, e.Error(), "Deserialize")
	assert.Contains(t, e.Error(), "bad int")
}

func TestParseErrorErrorWithoutField(t *testing.T) {
	e := &ParseError{Kind: ParseErrEmptyBody, Cause: errors.New("empty")}
	assert.NotContains(t, e.Error(), `field ""`)
	assert.Contains(t, e.Error(), "EmptyBody")
}

func TestParseErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := &ParseError{Cause: cause}
	assert.Same(t, cause, errors.Unwrap(e))
}

func TestParseErrorStatusErrorIsBadRequest(t *testing.T) {
	e := &ParseError{Kind: ParseErrJSON, Cause: errors.New("bad json")}
	se := e.StatusError()
	assert.Equal(t, 400, se.Code)
	assert.Contains(t, se.Detail, "bad json")
	assert.Same(t, e, se.Cause)
}
