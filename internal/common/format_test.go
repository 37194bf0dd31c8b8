package common

import "testing"

func TestParseOptionDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    uint32
		wantErr bool
	}{
		{"3m", 7_776_000, false},
		{"6m", 15_552_000, false},
		{"12m", 31_104_000, false},
		{"24m", 62_208_000, false},
		{"7776000", 7_776_000, false},
		{"0m", 0, true},
		{"0", 0, true},
		{"-3m", 0, true},
		{"soon", 0, true},
		{"5000m", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseOptionDuration(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOptionDuration(%q) expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOptionDuration(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOptionDuration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestShortId(t *testing.T) {
	if got := ShortId(""); got != "none" {
		t.Errorf("Expected none, got %s", got)
	}
	if got := ShortId("abc"); got != "abc" {
		t.Errorf("Expected abc, got %s", got)
	}
	if got := ShortId("0123456789"); got != "01234567..." {
		t.Errorf("Expected truncated id, got %s", got)
	}
}

func TestFormatUnix(t *testing.T) {
	if got := FormatUnix(0); got != "-" {
		t.Errorf("Expected -, got %s", got)
	}
	if got := FormatUnix(1_700_000_000); got != "2023-11-14 22:13:20" {
		t.Errorf("Unexpected format: %s", got)
	}
}
