package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"beaconly/internal/pkg/useragent"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name       string
		userAgent  string
		deviceType string
		bot        bool
	}{
		{
			name:       "Windows desktop Chrome",
			userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			deviceType: useragent.DeviceDesktop,
		},
		{
			name:       "iPhone Safari",
			userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			deviceType: useragent.DeviceMobile,
		},
		{
			name:       "iPad Safari",
			userAgent:  "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			deviceType: useragent.DeviceTablet,
		},
		{
			name:       "Android phone",
			userAgent:  "Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			deviceType: useragent.DeviceMobile,
		},
		{
			name:       "Android tablet without Mobile token",
			userAgent:  "Mozilla/5.0 (Linux; Android 13; SM-X906C) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			deviceType: useragent.DeviceTablet,
		},
		{
			name:       "Googlebot",
			userAgent:  "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			deviceType: useragent.DeviceDesktop,
			bot:        true,
		},
		{
			name:       "empty string",
			userAgent:  "",
			deviceType: useragent.DeviceOther,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := useragent.Classify(tc.userAgent)
			assert.Equal(t, tc.deviceType, c.DeviceType)
			assert.Equal(t, tc.bot, c.Bot)
		})
	}
}

func TestClassifyExtractsBrowserAndOS(t *testing.T) {
	c := useragent.Classify("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Equal(t, "Chrome", c.Browser)
	assert.NotEmpty(t, c.OS)
	assert.False(t, c.Bot)
}
