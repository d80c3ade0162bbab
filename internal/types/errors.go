package types

import (
	"fmt"
	"strings"
)

// KernelErrorCategory classifies kernel errors surfaced to users.
type KernelErrorCategory string

const (
	CategoryNotInstalled KernelErrorCategory = "notinstalled"
	CategoryNotFound     KernelErrorCategory = "notfound"
	CategoryUnknown      KernelErrorCategory = "unknown"
)

// KernelError is an error tied to a specific kernel connection.
type KernelError struct {
	Category KernelErrorCategory
	Message  string
	Kernel   KernelConnectionMetadata
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel %s (%s): %s", e.Kernel.ID, e.Category, e.Message)
}

// NewDebuggerNotInstalledError reports that the debugger package is missing from
// the kernel's environment. An empty message falls back to the default text.
func NewDebuggerNotInstalledError(debuggerPkg, message string, kernel KernelConnectionMetadata) *KernelError {
	if message == "" {
		message = fmt.Sprintf("Debugging requires the %s package to be installed in the kernel environment", debuggerPkg)
	}
	return &KernelError{
		Category: CategoryNotInstalled,
		Message:  message,
		Kernel:   kernel,
	}
}

// RequireDebugger returns a KernelError unless the kernel advertises debugger
// support in its kernelspec.
func RequireDebugger(kernel KernelConnectionMetadata) error {
	if kernel.DebuggerSupported {
		return nil
	}
	pkg := "a Jupyter debugger"
	if strings.EqualFold(kernel.Language, "python") || kernel.Kind == KindPythonInterpreter {
		pkg = "debugpy"
	}
	return NewDebuggerNotInstalledError(pkg, "", kernel)
}
