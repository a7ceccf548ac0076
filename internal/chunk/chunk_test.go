package chunk

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	got := Split("hello\nworld", 2000)
	if diff := cmp.Diff([]string{"hello\nworld"}, got); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplit_OneLongLine(t *testing.T) {
	text := strings.Repeat("a", 4500)
	got := Split(text, 2000)

	lengths := []int{len(got[0]), len(got[1]), len(got[2])}
	if diff := cmp.Diff([]int{2000, 2000, 500}, lengths); diff != "" {
		t.Errorf("chunk lengths mismatch (-want +got):\n%s", diff)
	}
	if strings.Join(got, "") != text {
		t.Error("concatenated chunks do not reproduce input")
	}
}

func TestSplit_PrefersNewlineBoundaries(t *testing.T) {
	line := strings.Repeat("x", 60)
	text := strings.Repeat(line+"\n", 10) // 610 bytes
	got := Split(text, 100)

	for i, c := range got {
		if len(c) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(c))
		}
		if !strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d does not break at a line boundary: %q", i, c)
		}
	}
	if strings.Join(got, "") != text {
		t.Error("concatenated chunks do not reproduce input")
	}
}

func TestSplit_MixedLongAndShortLines(t *testing.T) {
	text := "short\n" + strings.Repeat("b", 250) + "\nshort again\n"
	got := Split(text, 100)

	if strings.Join(got, "") != text {
		t.Error("concatenated chunks do not reproduce input")
	}
	for i, c := range got {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds limit: %d", i, len(c))
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("line one\nline two\n", 500)
	a := Split(text, 300)
	b := Split(text, 300)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Split is not deterministic (-first +second):\n%s", diff)
	}
}

// TestSplit_RoundTripProperty fuzzes random newline-riddled inputs and checks
// the two invariants: exact reassembly and the length bound.
func TestSplit_RoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []byte("ab \nc\nd")

	for i := 0; i < 200; i++ {
		n := rng.Intn(5000)
		buf := make([]byte, n)
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(buf)
		limit := 1 + rng.Intn(400)

		chunks := Split(text, limit)
		if strings.Join(chunks, "") != text {
			t.Fatalf("case %d: reassembly failed (len=%d limit=%d)", i, n, limit)
		}
		for j, c := range chunks {
			if len(c) > limit {
				t.Fatalf("case %d: chunk %d len %d > limit %d", i, j, len(c), limit)
			}
			if c == "" && text != "" {
				t.Fatalf("case %d: empty chunk emitted", i)
			}
		}
	}
}

func TestSplit_MultibyteRunesStayIntact(t *testing.T) {
	text := strings.Repeat("é", 50) // 100 bytes, no newlines
	got := Split(text, 25)

	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if len(c) > 25 {
			t.Errorf("chunk %d exceeds limit: %d", i, len(c))
		}
	}
	if strings.Join(got, "") != text {
		t.Error("concatenated chunks do not reproduce input")
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	got := Split("", 10)
	if diff := cmp.Diff([]string{""}, got); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
}
