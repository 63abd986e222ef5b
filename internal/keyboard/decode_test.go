package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ledimmer/internal/brightness"
)

func TestDecode(t *testing.T) {
	up := brightness.KeyUp
	down := brightness.KeyDown
	escape := brightness.KeyEscape
	other := brightness.KeyOther

	cases := []struct {
		name string
		in   string
		want []brightness.Key
	}{
		{name: "Empty", in: "", want: nil},
		{name: "CSIUp", in: "\x1b[A", want: []brightness.Key{up}},
		{name: "CSIDown", in: "\x1b[B", want: []brightness.Key{down}},
		{name: "SS3Up", in: "\x1bOA", want: []brightness.Key{up}},
		{name: "SS3Down", in: "\x1bOB", want: []brightness.Key{down}},
		{name: "LoneEscape", in: "\x1b", want: []brightness.Key{escape}},
		{name: "AltLetter", in: "\x1bq", want: []brightness.Key{other}},
		{name: "AltLetterThenText", in: "\x1bqx", want: []brightness.Key{other, other}},
		{name: "EscapeThenReturn", in: "\x1b\r", want: []brightness.Key{escape, other}},
		{name: "SS3Alone", in: "\x1bO", want: []brightness.Key{other}},
		{name: "DoubleEscape", in: "\x1b\x1b", want: []brightness.Key{escape, escape}},
		{name: "EscapeBeforeArrow", in: "\x1b\x1b[A", want: []brightness.Key{escape, up}},
		{name: "RightArrow", in: "\x1b[C", want: []brightness.Key{other}},
		{name: "PageUp", in: "\x1b[5~", want: []brightness.Key{other}},
		{name: "CtrlUp", in: "\x1b[1;5A", want: []brightness.Key{other}},
		{name: "Truncated", in: "\x1b[", want: []brightness.Key{other}},
		{name: "PlainBytes", in: "ab\x03", want: []brightness.Key{other, other, other}},
		{
			name: "Burst",
			in:   "\x1b[B\x1b[B\x1b[B\x1b[A",
			want: []brightness.Key{down, down, down, up},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decode([]byte(tc.in)))
		})
	}
}

func TestDecode_HoldsBackIncompleteSequence(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantKeys []brightness.Key
		wantRest string
	}{
		{name: "TrailingEscape", in: "\x1b[A\x1b", wantKeys: []brightness.Key{brightness.KeyUp}, wantRest: "\x1b"},
		{name: "TrailingCSI", in: "\x1b[", wantRest: "\x1b["},
		{name: "TrailingSS3", in: "x\x1bO", wantKeys: []brightness.Key{brightness.KeyOther}, wantRest: "\x1bO"},
		{name: "TrailingParams", in: "\x1b[1;5", wantRest: "\x1b[1;5"},
		{name: "Complete", in: "\x1b[B", wantKeys: []brightness.Key{brightness.KeyDown}},
		{name: "EscapeBeforeControl", in: "\x1b\x03", wantKeys: []brightness.Key{brightness.KeyEscape, brightness.KeyOther}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keys, rest := decode([]byte(tc.in), false)
			assert.Equal(t, tc.wantKeys, keys)
			assert.Equal(t, tc.wantRest, string(rest))
		})
	}
}

func TestDecode_SplitArrowJoinsAcrossReads(t *testing.T) {
	keys, rest := decode([]byte("\x1b"), false)
	assert.Empty(t, keys)

	keys, rest = decode(append(rest, "[B"...), false)
	assert.Equal(t, []brightness.Key{brightness.KeyDown}, keys)
	assert.Empty(t, rest)
}
