package types

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidMetadata is returned by Validate for malformed connection metadata.
var ErrInvalidMetadata = errors.New("invalid kernel connection metadata")

// KernelConnectionMetadata describes one discoverable kernel.
// It is a value type: finders produce it, the registry passes it through
// untouched, and consumers may copy it freely.
type KernelConnectionMetadata struct {
	ID          string           `json:"id" yaml:"id"`
	Kind        Kind             `json:"kind" yaml:"kind"`
	DisplayName string           `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Language    string           `json:"language,omitempty" yaml:"language,omitempty"`
	Interpreter *InterpreterInfo `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`

	// KernelSpecPath is the kernel.json a local kernel was read from.
	KernelSpecPath string `json:"kernel_spec_path,omitempty" yaml:"kernel_spec_path,omitempty"`

	// BaseURL is the Jupyter server a remote kernel lives on.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// DebuggerSupported mirrors the kernelspec's metadata.debugger flag.
	DebuggerSupported bool `json:"debugger_supported,omitempty" yaml:"debugger_supported,omitempty"`
}

// Validate checks if the metadata has valid field values
func (m KernelConnectionMetadata) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMetadata)
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMetadata, m.Kind)
	}
	if m.Kind.IsRemote() && m.BaseURL == "" {
		return fmt.Errorf("%w: %s kernel %q has no base_url", ErrInvalidMetadata, m.Kind, m.ID)
	}
	return nil
}

// String returns the short diagnostic form used in trace logs.
func (m KernelConnectionMetadata) String() string {
	uri := ""
	if m.Interpreter != nil {
		uri = m.Interpreter.URI
	}
	return fmt.Sprintf("%s, %s, %s", m.ID, m.Kind, uri)
}

// Kind discriminates kernel connection variants
type Kind string

const (
	KindLocalKernelSpec   Kind = "startUsingLocalKernelSpec"
	KindPythonInterpreter Kind = "startUsingPythonInterpreter"
	KindRemoteKernelSpec  Kind = "startUsingRemoteKernelSpec"
	KindLiveRemoteKernel  Kind = "connectToLiveRemoteKernel"
)

// IsValid checks if the kind value is valid
func (k Kind) IsValid() bool {
	switch k {
	case KindLocalKernelSpec, KindPythonInterpreter, KindRemoteKernelSpec, KindLiveRemoteKernel:
		return true
	}
	return false
}

// IsRemote reports whether kernels of this kind live on a Jupyter server.
func (k Kind) IsRemote() bool {
	return k == KindRemoteKernelSpec || k == KindLiveRemoteKernel
}

// InterpreterInfo references the execution environment behind a kernel.
type InterpreterInfo struct {
	URI         string `json:"uri" yaml:"uri"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// SemverVersion returns the interpreter version in canonical semver form
// ("3.11.4" -> "v3.11.4", "3.12" -> "v3.12.0"), or "" if it does not parse.
func (i *InterpreterInfo) SemverVersion() string {
	if i == nil || i.Version == "" {
		return ""
	}
	return CanonicalVersion(i.Version)
}

// CanonicalVersion normalizes a dotted version string to canonical semver.
// Python-style suffixes such as "3.13.0rc1" are mapped to "v3.13.0-rc1".
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	// Split off a trailing pre-release tag that lacks the semver dash.
	core := v
	pre := ""
	for idx := 1; idx < len(v); idx++ {
		c := v[idx]
		if (c < '0' || c > '9') && c != '.' {
			core, pre = v[:idx], v[idx:]
			break
		}
	}
	if pre != "" && !strings.HasPrefix(pre, "-") && !strings.HasPrefix(pre, "+") {
		pre = "-" + pre
	}
	return semver.Canonical(core + pre)
}

// AtLeastVersion reports whether the kernel's interpreter is at least minVersion.
// Kernels without a parseable interpreter version never satisfy a non-empty minVersion.
func AtLeastVersion(m KernelConnectionMetadata, minVersion string) bool {
	if minVersion == "" {
		return true
	}
	want := CanonicalVersion(minVersion)
	if want == "" {
		return false
	}
	have := m.Interpreter.SemverVersion()
	if have == "" {
		return false
	}
	return semver.Compare(have, want) >= 0
}

// IDs returns the ids of the given kernels in order.
func IDs(kernels []KernelConnectionMetadata) []string {
	ids := make([]string, len(kernels))
	for i, k := range kernels {
		ids[i] = k.ID
	}
	return ids
}

// Equal reports whether two metadata values describe the same kernel in full,
// comparing the interpreter by value.
func (m KernelConnectionMetadata) Equal(o KernelConnectionMetadata) bool {
	if m.ID != o.ID || m.Kind != o.Kind || m.DisplayName != o.DisplayName ||
		m.Language != o.Language || m.KernelSpecPath != o.KernelSpecPath ||
		m.BaseURL != o.BaseURL || m.DebuggerSupported != o.DebuggerSupported {
		return false
	}
	if (m.Interpreter == nil) != (o.Interpreter == nil) {
		return false
	}
	return m.Interpreter == nil || *m.Interpreter == *o.Interpreter
}

// EqualLists reports whether two ordered kernel lists are identical.
func EqualLists(a, b []KernelConnectionMetadata) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
