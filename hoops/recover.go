// Package hoops collects reusable Hoops (middleware Handlers) grounded on
// the teacher's gases, rebuilt against the Handler/FlowCtrl contract.
package hoops

import (
	"fmt"
	"runtime"

	"github.com/airhttp/air"
)

// RecoverConfig configures Recover.
type RecoverConfig struct {
	// Skipper lets a request bypass recovery.
	Skipper air.Skipper

	// StackSize is the size of the stack buffer captured on panic.
	// Optional. Default 4KB.
	StackSize int

	// DisableStackAll disables capturing the stacks of all other
	// goroutines, keeping only the panicking goroutine's stack.
	DisableStackAll bool

	// DisablePrintStack disables logging the captured stack.
	DisablePrintStack bool
}

// DefaultRecoverConfig is the default Recover config.
var DefaultRecoverConfig = RecoverConfig{
	Skipper:   air.DefaultSkipper,
	StackSize: 4 << 10,
}

// Recover returns a Hoop that recovers from panics in the rest of the
// chain, logs them, and renders a 500 StatusError instead of letting the
// panic reach the HyperHandler bridge.
func Recover() air.Handler {
	return RecoverWithConfig(DefaultRecoverConfig)
}

// RecoverWithConfig returns a Recover Hoop built from config.
func RecoverWithConfig(config RecoverConfig) air.Handler {
	if config.Skipper == nil {
		config.Skipper = DefaultRecoverConfig.Skipper
	}
	if config.StackSize == 0 {
		config.StackSize = DefaultRecoverConfig.StackSize
	}

	return air.HandlerFunc(func(req *air.Request, depot *air.Depot, res *air.Response, flow *air.FlowCtrl) {
		if config.Skipper(req, depot) {
			flow.CallNext(req, depot, res)
			return
		}

		flow.SetCatching(true)

		defer func() {
			r := recover()
			if r == nil {
				return
			}

			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}

			if !config.DisablePrintStack {
				stack := make([]byte, config.StackSize)
				length := runtime.Stack(stack, !config.DisableStackAll)
				if req.Air != nil {
					req.Air.Logger().Errorf("panic recovered: %v\n%s", err, stack[:length])
				}
			}

			res.SetError(air.ErrInternalServerError.WithCause(err))
		}()

		flow.CallNext(req, depot, res)
	})
}
