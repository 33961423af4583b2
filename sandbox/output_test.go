package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBuffer(t *testing.T) {
	buf := newOutputBuffer(10)
	require.NoError(t, buf.writeLine("abcd"))
	require.NoError(t, buf.writeLine("efgh"))

	err := buf.writeLine("i")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errOutputLimit))
	assert.Equal(t, "abcd\nefgh\n", buf.String())

	unlimited := newOutputBuffer(0)
	require.NoError(t, unlimited.writeLine("anything"))
}

func TestPrintFormatting(t *testing.T) {
	frame := sampleFrame(t)

	tests := []struct {
		name     string
		script   string
		expected string
	}{
		{"Primitives", "print(1, 2.5, 'a', true)", "1 2.5 a true\n"},
		{"NullUndefined", "print(null, undefined)", "null undefined\n"},
		{"NoArguments", "print()", "\n"},
		{"Array", "print([1, 'two', [3]])", "[1, 'two', [3]]\n"},
		{"Object", "print({a: 1, b: 'x'})", "{'a': 1, 'b': 'x'}\n"},
		{"Map", "print(new Map([['k', 1]]).size)", "1\n"},
		{"Function", "print(() => 1)", "<function>\n"},
		{"Error", "print(new TypeError('bad'))", "TypeError: bad\n"},
		{"CustomToString", "print({toString() { return 'custom' }})", "custom\n"},
		{"Nested", "print([[[[[[[[[[1]]]]]]]]]])", "[[[[[[[[...]]]]]]]]\n"},
		{"ConsoleInfo", "console.info('x', 1)", "x 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, runOn(t, frame, tt.script))
		})
	}
}
