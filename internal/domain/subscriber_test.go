package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"lowercase passthrough", "test@example.com", "test@example.com"},
		{"uppercase folded", "TEST@EXAMPLE.COM", "test@example.com"},
		{"whitespace trimmed", "  test@example.com  ", "test@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.email); got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{"valid email", "test@example.com", true},
		{"valid with subdomain", "test@mail.example.com", true},
		{"valid with plus", "test+tag@example.com", true},
		{"uppercase accepted", "TEST@EXAMPLE.COM", true},
		{"empty", "", false},
		{"no at sign", "testexample.com", false},
		{"no domain", "test@", false},
		{"no local part", "@example.com", false},
		{"no tld", "test@example", false},
		{"multiple at signs", "test@@example.com", false},
		{"too long local part", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateEmail(tt.email); got != tt.want {
				t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestSequenceStepAt(t *testing.T) {
	seq := &Sequence{
		Steps: []SequenceStep{
			{Position: 1, Subject: "Welcome"},
			{Position: 2, Subject: "Tip #1"},
			{Position: 3, Subject: "Tip #2"},
		},
	}

	if step := seq.StepAt(2); step == nil || step.Subject != "Tip #1" {
		t.Errorf("StepAt(2) = %+v, want Tip #1", step)
	}
	if step := seq.StepAt(4); step != nil {
		t.Errorf("StepAt(4) = %+v, want nil", step)
	}
	if got := seq.LastPosition(); got != 3 {
		t.Errorf("LastPosition() = %d, want 3", got)
	}

	empty := &Sequence{}
	if got := empty.LastPosition(); got != 0 {
		t.Errorf("LastPosition() on empty = %d, want 0", got)
	}
}
