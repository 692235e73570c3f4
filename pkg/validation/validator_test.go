package validation

import (
	"strings"
	"testing"
)

type tagged struct {
	URL   string `validate:"required"`
	Size  int    `validate:"min=1,max=10"`
	Level string `validate:"oneof=debug info"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantErr   bool
		errSubstr string
	}{
		{
			name:  "valid",
			input: &tagged{URL: "postgres://localhost/app", Size: 5, Level: "info"},
		},
		{
			name:      "missing required",
			input:     &tagged{Size: 5, Level: "info"},
			wantErr:   true,
			errSubstr: "URL: field is required",
		},
		{
			name:      "below min",
			input:     &tagged{URL: "x", Size: 0, Level: "info"},
			wantErr:   true,
			errSubstr: "Size: must be at least 1",
		},
		{
			name:      "above max",
			input:     &tagged{URL: "x", Size: 11, Level: "info"},
			wantErr:   true,
			errSubstr: "Size: must not exceed 10",
		},
		{
			name:      "not one of",
			input:     &tagged{URL: "x", Size: 1, Level: "loud"},
			wantErr:   true,
			errSubstr: "Level: must be one of",
		},
		{
			name:    "nil",
			input:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("Struct() error = %q, want substring %q", err, tt.errSubstr)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "users", false},
		{"underscore prefix", "_audit", false},
		{"savepoint style", "sp_0123456789abcdef0123456789abcdef", false},
		{"empty", "", true},
		{"leading digit", "1users", true},
		{"quote injection", `users"; DROP TABLE x; --`, true},
		{"dash", "user-data", true},
		{"too long", strings.Repeat("a", 64), true},
		{"max length", strings.Repeat("a", 63), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMigrationName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"create_users", false},
		{"add_index_2", false},
		{"", true},
		{"Create_Users", true},
		{"drop users", true},
		{"_leading", true},
		{strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateMigrationName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMigrationName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
