package security

import (
	"testing"
	"time"
)

func TestValidateURL_AllowedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []string{
		"https://example.com/feed.xml",
		"http://example.com/rss",
		"https://blog.example.co.jp:8443/atom.xml",
		"HTTPS://EXAMPLE.COM/FEED",
		"https://93.184.216.34/feed",
	}

	for _, rawURL := range tests {
		if err := guard.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
		}
	}
}

func TestValidateURL_BlockedURLs(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"空のURL", ""},
		{"ftpスキーム", "ftp://example.com/feed"},
		{"fileスキーム", "file:///etc/passwd"},
		{"ホストなし", "https:///feed"},
		{"localhost", "http://localhost:8080/feed"},
		{"ループバックIP", "http://127.0.0.1/feed"},
		{"プライベートIP 10系", "http://10.0.0.5/feed"},
		{"プライベートIP 172系", "http://172.16.1.1/feed"},
		{"プライベートIP 192系", "http://192.168.1.1/feed"},
		{"リンクローカル（メタデータIP）", "http://169.254.169.254/latest/meta-data"},
		{"IPv6ループバック", "http://[::1]/feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
		})
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient がnilを返した")
	}
}

func TestNewSafeClient_BlocksPrivateAddresses(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(2 * time.Second)
	if _, err := client.Get("http://127.0.0.1:1/feed"); err == nil {
		t.Error("ループバックへのリクエストはブロックされるべき")
	}
}

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
