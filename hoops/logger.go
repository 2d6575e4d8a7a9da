package hoops

import (
	"time"

	"github.com/airhttp/air"
)

// LoggerConfig configures Logger.
type LoggerConfig struct {
	// Skipper lets a request bypass logging.
	Skipper air.Skipper
}

// DefaultLoggerConfig is the default Logger config.
var DefaultLoggerConfig = LoggerConfig{Skipper: air.DefaultSkipper}

// Logger returns a Hoop that logs one line per request through the Air
// Logger once the rest of the chain has run.
func Logger() air.Handler {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a Logger Hoop built from config.
func LoggerWithConfig(config LoggerConfig) air.Handler {
	if config.Skipper == nil {
		config.Skipper = DefaultLoggerConfig.Skipper
	}

	return air.HandlerFunc(func(req *air.Request, depot *air.Depot, res *air.Response, flow *air.FlowCtrl) {
		if config.Skipper(req, depot) {
			flow.CallNext(req, depot, res)
			return
		}

		start := time.Now()
		flow.CallNext(req, depot, res)
		latency := time.Since(start)

		if req.Air == nil {
			return
		}

		req.Air.Logger().Infof(
			"%s %s %s %d %s %s",
			req.RemoteAddr, req.Method, req.Path, res.StatusCode, latency, req.Header.Get("User-Agent"),
		)
	})
}
