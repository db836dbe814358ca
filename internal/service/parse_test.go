package service

import "testing"

func TestParseUF(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"sp", "SP", true},
		{"SP", "SP", true},
		{" r j ", "RJ", true},
		{"são paulo", "", false},
		{"s1", "", false},
		{"s", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseUF(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseUF(%q) = %q, %t; want %q, %t", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseBedrooms(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2", 2, true},
		{"2 dormitorios", 2, true},
		{"uns 3 quartos", 3, true},
		{"12", 12, true},
		{"muitos", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseBedrooms(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseBedrooms(%q) = %d, %t; want %d, %t", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePrice(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		in      string
		wantMin *float64
		wantMax *float64
	}{
		{"2000-3500", f(2000), f(3500)},
		{"R$ 2000 - R$ 3500", f(2000), f(3500)},
		{"ate 3000", nil, f(3000)},
		{"até 3000", nil, f(3000)},
		{"2500", f(2500), f(2500)},
		{"2000-abc", nil, nil},
		{"sei lá", nil, nil},
		{"", nil, nil},
	}
	for _, tt := range tests {
		gotMin, gotMax := parsePrice(tt.in)
		if !floatPtrEq(gotMin, tt.wantMin) || !floatPtrEq(gotMax, tt.wantMax) {
			t.Errorf("parsePrice(%q) = %v, %v; want %v, %v", tt.in, fmtPtr(gotMin), fmtPtr(gotMax), fmtPtr(tt.wantMin), fmtPtr(tt.wantMax))
		}
	}
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtPtr(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{950, "950"},
		{3200, "3.200"},
		{450000, "450.000"},
		{1234567.8, "1.234.568"},
		{-3200, "-3.200"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Errorf("formatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
