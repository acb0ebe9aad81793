package embedding

import (
	"reflect"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d, want 10", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("expected CLS %d, got %d", clsToken, ids[0])
	}
	if ids[3] != sepToken {
		t.Errorf("expected SEP at 3, got %d", ids[3])
	}
	for i := 0; i < 4; i++ {
		if attn[i] != 1 {
			t.Errorf("attention[%d] should be 1", i)
		}
	}
	if attn[4] != 0 {
		t.Error("padding should not be attended")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h", 4)
	if ids[3] != sepToken {
		t.Errorf("last token should be SEP, got %v", ids)
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"  a  b  c  ", []string{"a", "b", "c"}},
		{"What color is the sky?", []string{"what", "color", "is", "the", "sky"}},
		{"Grass is green.", []string{"grass", "is", "green"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := Words(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Words(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("hash should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different tokens should hash differently")
	}
}
