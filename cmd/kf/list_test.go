package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

func init() {
	color.NoColor = true
}

func python(id, version string) types.KernelConnectionMetadata {
	return types.KernelConnectionMetadata{
		ID:          id,
		Kind:        types.KindPythonInterpreter,
		DisplayName: "Python " + version,
		Language:    "python",
		Interpreter: &types.InterpreterInfo{URI: "/usr/bin/python3", Version: version},
	}
}

func TestFilterByVersion(t *testing.T) {
	kernels := []types.KernelConnectionMetadata{
		python("py39", "3.9.18"),
		python("py312", "3.12.1"),
		{ID: "ir", Kind: types.KindLocalKernelSpec, Language: "R"},
		python("py313rc", "3.13.0rc1"),
	}

	tests := []struct {
		name       string
		minVersion string
		want       []string
	}{
		{"empty keeps everything", "", []string{"py39", "py312", "ir", "py313rc"}},
		{"minor floor", "3.11", []string{"py312", "py313rc"}},
		{"exact patch", "3.12.1", []string{"py312", "py313rc"}},
		{"nothing matches", "4", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types.IDs(filterByVersion(kernels, tt.minVersion)))
		})
	}
}

func TestFormatKernelLine(t *testing.T) {
	k := python("py312", "3.12.1")
	k.DebuggerSupported = true
	assert.Equal(t, "  Python 3.12.1 [python, 3.12.1, debug]  py312  (Local kernelspecs)",
		formatKernelLine(k, "Local kernelspecs"))

	bare := types.KernelConnectionMetadata{ID: "ext:sql", Kind: types.KindLocalKernelSpec}
	assert.Equal(t, "  ext:sql  ext:sql", formatKernelLine(bare, ""))
}

func TestWriteKernelsJSON(t *testing.T) {
	t.Run("empty list is an array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeKernelsJSON(&buf, nil))
		assert.JSONEq(t, `[]`, buf.String())
	})

	t.Run("fields", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeKernelsJSON(&buf, []types.KernelConnectionMetadata{python("py312", "3.12.1")}))

		var decoded []map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, "py312", decoded[0]["id"])
		assert.Equal(t, "startUsingPythonInterpreter", decoded[0]["kind"])
	})
}

type fakeLookup map[string]finder.Info

func (f fakeLookup) GetFinderForConnection(kernel types.KernelConnectionMetadata) (finder.Info, bool) {
	info, ok := f[kernel.ID]
	return info, ok
}

func TestPrintKernels(t *testing.T) {
	t.Run("no kernels", func(t *testing.T) {
		var buf bytes.Buffer
		printKernels(&buf, nil, nil)
		assert.Contains(t, buf.String(), "No kernels found")
	})

	t.Run("with sources", func(t *testing.T) {
		local := finder.NewBase("local:/k", "Local kernelspecs", finder.KindLocal)
		lookup := fakeLookup{"py312": local}

		var buf bytes.Buffer
		printKernels(&buf, []types.KernelConnectionMetadata{
			python("py312", "3.12.1"),
			python("py39", "3.9.18"),
		}, lookup)

		out := buf.String()
		assert.Contains(t, out, "Kernels (2)")
		assert.Contains(t, out, "py312  (Local kernelspecs)")
		assert.Contains(t, out, "py39\n")
	})
}
