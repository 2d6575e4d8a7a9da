package hoops

import (
	"fmt"

	"github.com/airhttp/air"
)

// SecureConfig configures Secure.
type SecureConfig struct {
	// Skipper lets a request bypass the Hoop.
	Skipper air.Skipper

	// XSSProtection sets the X-XSS-Protection header.
	// Optional. Default "1; mode=block".
	XSSProtection string

	// ContentTypeNosniff sets the X-Content-Type-Options header.
	// Optional. Default "nosniff".
	ContentTypeNosniff string

	// XFrameOptions sets the X-Frame-Options header.
	// Optional. Default "SAMEORIGIN".
	XFrameOptions string

	// HSTSMaxAge sets the Strict-Transport-Security header's max-age, in
	// seconds. Zero disables the header.
	HSTSMaxAge int

	// HSTSExcludeSubdomains omits includeSubDomains from the
	// Strict-Transport-Security header.
	HSTSExcludeSubdomains bool

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	ContentSecurityPolicy string
}

// DefaultSecureConfig is the default Secure config.
var DefaultSecureConfig = SecureConfig{
	Skipper:            air.DefaultSkipper,
	XSSProtection:      "1; mode=block",
	ContentTypeNosniff: "nosniff",
	XFrameOptions:      "SAMEORIGIN",
}

// Secure returns a Hoop that sets common security-related response
// headers against XSS, content sniffing and clickjacking.
func Secure() air.Handler {
	return SecureWithConfig(DefaultSecureConfig)
}

// SecureWithConfig returns a Secure Hoop built from config.
func SecureWithConfig(config SecureConfig) air.Handler {
	if config.Skipper == nil {
		config.Skipper = DefaultSecureConfig.Skipper
	}

	return air.HandlerFunc(func(req *air.Request, depot *air.Depot, res *air.Response, flow *air.FlowCtrl) {
		if config.Skipper(req, depot) {
			flow.CallNext(req, depot, res)
			return
		}

		if config.XSSProtection != "" {
			res.Header.Set("X-XSS-Protection", config.XSSProtection)
		}
		if config.ContentTypeNosniff != "" {
			res.Header.Set("X-Content-Type-Options", config.ContentTypeNosniff)
		}
		if config.XFrameOptions != "" {
			res.Header.Set("X-Frame-Options", config.XFrameOptions)
		}
		if config.HSTSMaxAge > 0 && req.Scheme == "https" {
			subdomains := ""
			if !config.HSTSExcludeSubdomains {
				subdomains = "; includeSubDomains"
			}
			res.Header.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d%s", config.HSTSMaxAge, subdomains))
		}
		if config.ContentSecurityPolicy != "" {
			res.Header.Set("Content-Security-Policy", config.ContentSecurityPolicy)
		}

		flow.CallNext(req, depot, res)
	})
}
