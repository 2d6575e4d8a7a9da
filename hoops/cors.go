package hoops

import (
	"strconv"
	"strings"

	"github.com/airhttp/air"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// Skipper lets a request bypass the Hoop.
	Skipper air.Skipper

	// AllowOrigins is the list of origins that may access the resource.
	// Optional. Default []string{"*"}.
	AllowOrigins []string

	// AllowMethods is the list of methods allowed when accessing the
	// resource in a preflight request.
	AllowMethods []string

	// AllowHeaders is the list of headers allowed in the actual request,
	// in response to a preflight request.
	AllowHeaders []string

	// AllowCredentials indicates whether the response can be exposed when
	// the credentials flag is true.
	AllowCredentials bool

	// ExposeHeaders is the list of headers clients are allowed to access.
	ExposeHeaders []string

	// MaxAge is how long, in seconds, the results of a preflight request
	// can be cached.
	MaxAge int
}

// DefaultCORSConfig is the default CORS config.
var DefaultCORSConfig = CORSConfig{
	Skipper:      air.DefaultSkipper,
	AllowOrigins: []string{"*"},
	AllowMethods: []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
}

// CORS returns a Hoop implementing Cross-Origin Resource Sharing.
func CORS() air.Handler {
	return CORSWithConfig(DefaultCORSConfig)
}

// CORSWithConfig returns a CORS Hoop built from config.
func CORSWithConfig(config CORSConfig) air.Handler {
	if config.Skipper == nil {
		config.Skipper = DefaultCORSConfig.Skipper
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = DefaultCORSConfig.AllowOrigins
	}
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = DefaultCORSConfig.AllowMethods
	}

	allowMethods := strings.Join(config.AllowMethods, ",")
	allowHeaders := strings.Join(config.AllowHeaders, ",")
	exposeHeaders := strings.Join(config.ExposeHeaders, ",")

	return air.HandlerFunc(func(req *air.Request, depot *air.Depot, res *air.Response, flow *air.FlowCtrl) {
		if config.Skipper(req, depot) {
			flow.CallNext(req, depot, res)
			return
		}

		origin := req.Header.Get("Origin")
		res.Header.Add("Vary", "Origin")

		allowOrigin := ""
		for _, o := range config.AllowOrigins {
			if o == "*" || o == origin {
				allowOrigin = o
				break
			}
		}

		if req.Method != "OPTIONS" {
			if origin != "" && allowOrigin != "" {
				res.Header.Set("Access-Control-Allow-Origin", allowOrigin)
				if config.AllowCredentials {
					res.Header.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeaders != "" {
					res.Header.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}
			flow.CallNext(req, depot, res)
			return
		}

		res.Header.Add("Vary", "Access-Control-Request-Method")
		res.Header.Add("Vary", "Access-Control-Request-Headers")

		if origin != "" && allowOrigin != "" {
			res.Header.Set("Access-Control-Allow-Origin", allowOrigin)
			res.Header.Set("Access-Control-Allow-Methods", allowMethods)
			if config.AllowCredentials {
				res.Header.Set("Access-Control-Allow-Credentials", "true")
			}
			if allowHeaders != "" {
				res.Header.Set("Access-Control-Allow-Headers", allowHeaders)
			} else if h := req.Header.Get("Access-Control-Request-Headers"); h != "" {
				res.Header.Set("Access-Control-Allow-Headers", h)
			}
			if config.MaxAge > 0 {
				res.Header.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
		}

		res.SetStatus(204)
		flow.SkipRest()
	})
}
