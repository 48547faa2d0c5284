package bot

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		limit int
		want  []int
	}{
		{name: "fits in one", text: strings.Repeat("x", 4096), limit: 4096, want: []int{4096}},
		{name: "nine thousand", text: strings.Repeat("x", 9000), limit: 4096, want: []int{4096, 4096, 808}},
		{name: "exact multiple", text: strings.Repeat("x", 8192), limit: 4096, want: []int{4096, 4096}},
		{name: "empty", text: "", limit: 4096, want: []int{0}},
		{name: "no limit", text: strings.Repeat("x", 9000), limit: 0, want: []int{9000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := SplitMessage(tc.text, tc.limit)
			if len(chunks) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tc.want))
			}
			var rebuilt strings.Builder
			for i, chunk := range chunks {
				if len([]rune(chunk)) != tc.want[i] {
					t.Fatalf("chunk %d length = %d, want %d", i, len([]rune(chunk)), tc.want[i])
				}
				if tc.limit > 0 && len([]rune(chunk)) > tc.limit {
					t.Fatalf("chunk %d length %d exceeds limit %d", i, len([]rune(chunk)), tc.limit)
				}
				rebuilt.WriteString(chunk)
			}
			if rebuilt.String() != tc.text {
				t.Fatalf("chunks do not reassemble input")
			}
		})
	}
}

func TestSplitMessageKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 500)
	for _, chunk := range SplitMessage(text, 100) {
		if chunk == "" {
			t.Fatalf("empty chunk produced")
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("chunk split a multi-byte character")
			}
		}
	}
}
