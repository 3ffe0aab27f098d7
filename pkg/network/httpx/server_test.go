package httpx

import "testing"

func TestHostWithPort(t *testing.T) {
	tests := []struct {
		address string
		port    int
		want    string
	}{
		{"host.com:8080", 8888, "host.com:8888"},
		{"host.com", 8888, "host.com:8888"},
		{"", 8000, "localhost:8000"},
		{":8000", 8000, "localhost:8000"},
		{"host.com:8080", 443, "host.com"},
		{"host.com:8080", 80, "host.com"},
		{"host.com", 0, "host.com"},
	}
	for _, test := range tests {
		if got := hostWithPort(test.address, test.port); got != test.want {
			t.Errorf("hostWithPort(%q, %v) = %q, want %q", test.address, test.port, got, test.want)
		}
	}
}
