// pkg/vm/result.go
package vm

import "fmt"

// Result is the per-statement outcome handed back to the caller. Domain
// errors travel inside a failed Result; invariant violations panic instead.
type Result struct {
	Success      bool
	Body         any
	ErrorMessage string
}

func okResult(body any) Result {
	return Result{Success: true, Body: body}
}

func errResult(format string, args ...any) Result {
	return Result{Success: false, ErrorMessage: fmt.Sprintf(format, args...)}
}

func notImplemented(feature string) Result {
	return Result{Success: false, ErrorMessage: "not implemented: " + feature}
}
