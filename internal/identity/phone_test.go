package identity

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+911234567890", "+911234567890"},
		{"1234567890", "+911234567890"},
		{"01234567890", "+911234567890"},
		{"+91 12345-67890", "+911234567890"},
		{"(123) 456.7890", "+911234567890"},
		{"00441234567890", "+441234567890"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, "+91")
		if err != nil {
			t.Fatalf("NormalizePhone(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhoneDefaultCountryWithoutPlus(t *testing.T) {
	got, err := NormalizePhone("2025550123", "1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "+12025550123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizePhoneRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "12345", "+0123456789", "abcdefghij", "+91123456789012345", "911234567890"} {
		if _, err := NormalizePhone(in, "+91"); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q) expected ErrInvalidPhone, got %v", in, err)
		}
	}
}
