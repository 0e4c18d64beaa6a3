package transform

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// evalResult carries the value and console output of one script run.
type evalResult struct {
	value   interface{}
	console []string
}

// runScript executes JavaScript in a fresh interpreter. Each call gets
// its own VM, so concurrent dispatches cannot observe each other's
// state.
func runScript(ctx context.Context, script string, input interface{}, timeout time.Duration) (*evalResult, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	// Remove escape hatches a hosted script could reach for.
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })

	res := &evalResult{console: []string{}}
	logFunc := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		res.console = append(res.console, strings.Join(parts, " "))
		return goja.Undefined()
	}
	console := vm.NewObject()
	console.Set("log", logFunc)
	console.Set("warn", logFunc)
	console.Set("error", logFunc)
	vm.Set("console", console)

	vm.Set("input", input)

	done := make(chan struct{})
	defer close(done)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := vm.RunString(script)
	if err != nil {
		return nil, err
	}

	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		res.value = val.Export()
	}
	return res, nil
}

// walkPath resolves a dot-separated path against decoded JSON data.
// Numeric segments index into arrays.
func walkPath(input interface{}, path string) (interface{}, bool) {
	current := input
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
