package completion

import (
	"reflect"
	"testing"
)

func TestFormatBR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11988887777", "(11) 98888-7777"},
		{"1133334444", "(11) 3333-4444"},
		{"(11) 98888-7777", "(11) 98888-7777"},
		{"12345", "12345"},
	}
	for _, tc := range cases {
		if got := formatBR(tc.in); got != tc.want {
			t.Fatalf("formatBR(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPT(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"912345678", "+351 912 345 678"},
		{"351912345678", "+351 912 345 678"},
		{"+351 912 345 678", "+351 912 345 678"},
		{"12345", "12345"},
	}
	for _, tc := range cases {
		if got := formatPT(tc.in); got != tc.want {
			t.Fatalf("formatPT(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPhoneCandidates(t *testing.T) {
	got := phoneCandidates("11988887777")
	want := []string{"11988887777", "(11) 98888-7777"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("phoneCandidates = %v, want %v", got, want)
	}

	got = phoneCandidates("(11) 98888-7777")
	want = []string{"(11) 98888-7777", "11988887777"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("phoneCandidates = %v, want %v", got, want)
	}
}
