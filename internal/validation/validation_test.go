package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
		{"newline", "\n  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateQuery(tc.input, 0)
			if !errors.Is(err, ErrQueryEmpty) {
				t.Errorf("error = %v, want ErrQueryEmpty", err)
			}
		})
	}
}

// TestValidateQuery_LengthBound verifies the bound is exclusive and counted
// in runes, not bytes.
func TestValidateQuery_LengthBound(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"99 ascii", strings.Repeat("a", 99), nil},
		{"100 ascii", strings.Repeat("a", 100), ErrQueryTooLong},
		{"99 multibyte", strings.Repeat("ü", 99), nil},
		{"100 multibyte", strings.Repeat("ü", 100), ErrQueryTooLong},
		{"trim before measuring", "  " + strings.Repeat("a", 99) + "  ", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateQuery(tc.input, DefaultMaxQueryLength)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateQuery_CustomBound(t *testing.T) {
	if _, err := ValidateQuery("Paris", 5); !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("error = %v, want ErrQueryTooLong", err)
	}
	if _, err := ValidateQuery("Rome", 5); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateQuery_ControlChars(t *testing.T) {
	for _, input := range []string{"sea\x00ttle", "sea\x1bttle", "a\u0085b"} {
		if _, err := ValidateQuery(input, 0); !errors.Is(err, ErrQueryControlChars) {
			t.Errorf("ValidateQuery(%q) error = %v, want ErrQueryControlChars", input, err)
		}
	}
}

func TestValidateQuery_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNorm string
	}{
		{"simple", "Berlin", "Berlin"},
		{"with space", "New York", "New York"},
		{"punctuation", "St. John's", "St. John's"},
		{"trimmed", "  Boston  ", "Boston"},
		{"unicode", "Zürich", "Zürich"},
		{"cjk", "東京", "東京"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateQuery(tc.input, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.wantNorm {
				t.Errorf("got %q, want %q", got, tc.wantNorm)
			}
		})
	}
}

func TestValidateCountry(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"GB", "GB", false},
		{" ca ", "CA", false},
		{"XX", "", true},
		{"GBR", "", true},
		{"1", "", true},
	}
	for _, tc := range tests {
		got, err := ValidateCountry(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrCountryInvalid) {
				t.Errorf("ValidateCountry(%q) error = %v, want ErrCountryInvalid", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateCountry(%q) unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("ValidateCountry(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestValidateCoordinates(t *testing.T) {
	valid := [][2]float64{{0, 0}, {90, 180}, {-90, -180}, {51.5, -0.12}}
	for _, c := range valid {
		if err := ValidateCoordinates(c[0], c[1]); err != nil {
			t.Errorf("ValidateCoordinates(%v) unexpected error: %v", c, err)
		}
	}
	invalid := [][2]float64{{90.1, 0}, {0, -180.5}, {-91, 10}}
	for _, c := range invalid {
		if err := ValidateCoordinates(c[0], c[1]); !errors.Is(err, ErrCoordinatesInvalid) {
			t.Errorf("ValidateCoordinates(%v) error = %v, want ErrCoordinatesInvalid", c, err)
		}
	}
}
