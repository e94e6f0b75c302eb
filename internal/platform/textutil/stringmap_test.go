package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" Colour ": " Indigo ",
			"size":     " Large ",
			"empty":    " ",
			" ":        "ignored",
			"":         "ignore",
		}

		expected := map[string]string{
			"Colour": "Indigo",
			"size":   "Large",
			"empty":  "",
		}

		actual := NormalizeStringMap(input)
		if !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("strips markup from values", func(t *testing.T) {
		actual := NormalizeStringMap(map[string]string{"engraving": `<script>alert(1)</script>Asha`})
		if actual["engraving"] != "Asha" {
			t.Fatalf("expected markup removed, got %q", actual["engraving"])
		}
	})

	t.Run("returns nil for nil or empty input", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{}) != nil {
			t.Fatalf("expected nil for empty map")
		}
	})
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Packed with care  ", "Packed with care"},
		{"html tags", "<b>Fragile</b> pottery", "Fragile pottery"},
		{"ampersand survives", "Blue Dart & DTDC", "Blue Dart & DTDC"},
		{"control characters", "Shipped\x00 today", "Shipped today"},
		{"nfc", "Cafe\u0301", "Caf\u00e9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRuneLengthCountsCharacters(t *testing.T) {
	if got := RuneLength("कला"); got != 3 {
		t.Fatalf("expected 3 runes, got %d", got)
	}
}
