// Package useragent classifies raw User-Agent strings into the coarse
// device, browser and OS buckets the analytics queries group by.
package useragent

import (
	"strings"

	"github.com/mssola/user_agent"
)

// Device buckets stored on events.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
	DeviceOther   = "other"
)

// Classification is the write-time result attached to each event.
type Classification struct {
	DeviceType string
	Browser    string
	OS         string
	Bot        bool
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "silk", "playbook", "nexus 7", "nexus 9", "nexus 10"}

// Classify parses a User-Agent header. Empty or unparseable strings land in
// the "other" device bucket with blank browser/OS rather than failing.
func Classify(uaString string) Classification {
	if strings.TrimSpace(uaString) == "" {
		return Classification{DeviceType: DeviceOther}
	}

	ua := user_agent.New(uaString)
	browserName, _ := ua.Browser()

	c := Classification{
		Browser:    browserName,
		OS:         ua.OS(),
		Bot:        ua.Bot(),
		DeviceType: DeviceDesktop,
	}

	lower := strings.ToLower(uaString)
	switch {
	case isTablet(lower):
		c.DeviceType = DeviceTablet
	case ua.Mobile():
		c.DeviceType = DeviceMobile
	case c.Browser == "" && c.OS == "":
		c.DeviceType = DeviceOther
	}

	return c
}

// isTablet catches tablets that mssola reports as mobile or desktop. Android
// tablets omit the "Mobile" token that phones carry.
func isTablet(lowerUA string) bool {
	for _, marker := range tabletMarkers {
		if strings.Contains(lowerUA, marker) {
			return true
		}
	}
	if strings.Contains(lowerUA, "android") && !strings.Contains(lowerUA, "mobile") {
		return true
	}
	return false
}
