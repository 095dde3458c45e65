package js

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// consoleAPI implements console.log, console.debug, console.warn and
// console.error on top of a zap logger.
type consoleAPI struct {
	logger *zap.Logger
}

func (c *consoleAPI) register(vm *goja.Runtime) {
	console := vm.NewObject()
	console.Set("log", c.level(c.logger.Info))
	console.Set("info", c.level(c.logger.Info))
	console.Set("debug", c.level(c.logger.Debug))
	console.Set("warn", c.level(c.logger.Warn))
	console.Set("error", c.level(c.logger.Error))
	vm.Set("console", console)
}

func (c *consoleAPI) level(log func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		log(formatArgs(call.Arguments))
		return goja.Undefined()
	}
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
