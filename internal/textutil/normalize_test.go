package textutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: "   ", want: ""},
		{name: "lowercases", input: "Title A", want: "title a"},
		{name: "strips punctuation", input: "Re:Zero - Starting Life", want: "re zero starting life"},
		{name: "ampersand becomes and", input: "Tom & Jerry", want: "tom and jerry"},
		{name: "plus becomes and", input: "Darling+Franxx", want: "darling and franxx"},
		{name: "folds full width", input: "ＴＩＴＬＥ　Ａ", want: "title a"},
		{name: "keeps kana", input: "ソードアート・オンライン", want: "ソードアート オンライン"},
		{name: "collapses runs", input: "A --- B", want: "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
