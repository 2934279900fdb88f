package handler

import "testing"

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		userAgent string
		want      string
	}{
		{"", "api"},
		{"curl/8.5.0", "api"},
		{"Go-http-client/2.0", "api"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36", "web"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Gecko/20100101 Firefox/124.0", "web"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36", "mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", "mobile"},
	}
	for _, tc := range cases {
		if got := classifyDevice(tc.userAgent); got != tc.want {
			t.Errorf("classifyDevice(%q) = %q, want %q", tc.userAgent, got, tc.want)
		}
	}
}
