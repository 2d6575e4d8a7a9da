package air

import "fmt"

// ParseErrorKind enumerates the request-side parse failures the extraction
// engine can surface, per §4.4.
type ParseErrorKind int

const (
	ParseErrInvalidContentType ParseErrorKind = iota
	ParseErrEmptyBody
	ParseErrParseFromStr
	ParseErrURLDecode
	ParseErrDeserialize
	ParseErrDuplicateKey
	ParseErrNotMultipart
	ParseErrNotFormData
	ParseErrInvalidRange
	ParseErrIO
	ParseErrUTF8
	ParseErrJSON
	ParseErrOther
)

var parseErrorNames = [...]string{
	"InvalidContentType",
	"EmptyBody",
	"ParseFromStr",
	"UrlDecode",
	"Deserialize",
	"DuplicateKey",
	"NotMultipart",
	"NotFormData",
	"InvalidRange",
	"IO",
	"Utf8",
	"SerdeJson",
	"Other",
}

// String implements fmt.Stringer.
func (k ParseErrorKind) String() string {
	if int(k) < 0 || int(k) >= len(parseErrorNames) {
		return "Unknown"
	}
	return parseErrorNames[k]
}

// ParseError is returned by Request's typed accessors and the extraction
// engine. A handler signature's extraction failure maps to a 400 response
// via the Catcher, unless the destination field is optional.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error (%s) on field %q: %v", e.Kind, e.Field, e.Cause)
	}
	return fmt.Sprintf("parse error (%s): %v", e.Kind, e.Cause)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StatusError maps a ParseError onto the 400 Bad Request taxonomy entry.
func (e *ParseError) StatusError() *StatusError {
	return ErrBadRequest.WithDetail(e.Error()).WithCause(e)
}
