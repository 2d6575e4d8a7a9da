package hoops

import (
	"encoding/base64"
	"strings"

	"github.com/airhttp/air"
)

// BasicAuthValidator validates a username/password pair extracted from an
// Authorization: Basic header.
type BasicAuthValidator func(username, password string, req *air.Request) bool

// BasicAuthConfig configures BasicAuth.
type BasicAuthConfig struct {
	// Skipper lets a request bypass the Hoop.
	Skipper air.Skipper

	// Validator validates credentials. Required.
	Validator BasicAuthValidator

	// Realm sets the WWW-Authenticate realm. Optional. Default "Restricted".
	Realm string
}

// DefaultBasicAuthConfig is the default BasicAuth config, minus Validator.
var DefaultBasicAuthConfig = BasicAuthConfig{
	Skipper: air.DefaultSkipper,
	Realm:   "Restricted",
}

// BasicAuth returns a Hoop enforcing HTTP Basic authentication, validating
// credentials with fn. It renders 401 for missing/invalid credentials and
// 400 for a malformed Authorization header.
func BasicAuth(fn BasicAuthValidator) air.Handler {
	config := DefaultBasicAuthConfig
	config.Validator = fn
	return BasicAuthWithConfig(config)
}

// BasicAuthWithConfig returns a BasicAuth Hoop built from config.
func BasicAuthWithConfig(config BasicAuthConfig) air.Handler {
	if config.Validator == nil {
		panic("hoops: basic auth requires a validator")
	}
	if config.Skipper == nil {
		config.Skipper = DefaultBasicAuthConfig.Skipper
	}
	if config.Realm == "" {
		config.Realm = DefaultBasicAuthConfig.Realm
	}

	challenge := `Basic realm="` + config.Realm + `"`

	return air.HandlerFunc(func(req *air.Request, depot *air.Depot, res *air.Response, flow *air.FlowCtrl) {
		if config.Skipper(req, depot) {
			flow.CallNext(req, depot, res)
			return
		}

		auth := req.Header.Get("Authorization")
		const prefix = "Basic "
		if !strings.HasPrefix(auth, prefix) {
			res.Header.Set("WWW-Authenticate", challenge)
			res.SetError(air.ErrUnauthorized)
			return
		}

		b, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
		if err != nil {
			res.SetError(air.ErrBadRequest)
			return
		}

		cred := string(b)
		i := strings.IndexByte(cred, ':')
		if i < 0 {
			res.SetError(air.ErrBadRequest)
			return
		}

		if !config.Validator(cred[:i], cred[i+1:], req) {
			res.Header.Set("WWW-Authenticate", challenge)
			res.SetError(air.ErrUnauthorized)
			return
		}

		flow.CallNext(req, depot, res)
	})
}
