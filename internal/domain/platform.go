package domain

import "strings"

// PlatformKind identifies the website platform an agency publishes on. It is a
// closed set; anything unrecognised parses to PlatformUnknown.
type PlatformKind int

const (
	PlatformUnknown PlatformKind = iota
	PlatformCivicPlus
	PlatformCrimeMapping
	PlatformNixle
	PlatformRave
	PlatformCitizenRIMS
	PlatformSocrata
	PlatformArcGIS
	PlatformPDF
	PlatformRSS
)

var platformNames = [...]string{
	PlatformUnknown:      "default",
	PlatformCivicPlus:    "civicplus",
	PlatformCrimeMapping: "crimemapping",
	PlatformNixle:        "nixle",
	PlatformRave:         "rave",
	PlatformCitizenRIMS:  "citizenrims",
	PlatformSocrata:      "socrata",
	PlatformArcGIS:       "arcgis",
	PlatformPDF:          "pdf",
	PlatformRSS:          "rss",
}

// Platforms lists every recognised platform.
var Platforms = []PlatformKind{
	PlatformCivicPlus,
	PlatformCrimeMapping,
	PlatformNixle,
	PlatformRave,
	PlatformCitizenRIMS,
	PlatformSocrata,
	PlatformArcGIS,
	PlatformPDF,
	PlatformRSS,
}

// ParsePlatform maps a registry platform_type string to a PlatformKind.
// Matching is case-insensitive and ignores surrounding space.
func ParsePlatform(s string) PlatformKind {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Platforms {
		if platformNames[p] == s {
			return p
		}
	}
	return PlatformUnknown
}

// Known reports whether p is a recognised platform.
func (p PlatformKind) Known() bool {
	return p > PlatformUnknown && int(p) < len(platformNames)
}

func (p PlatformKind) String() string {
	if p < 0 || int(p) >= len(platformNames) {
		return platformNames[PlatformUnknown]
	}
	return platformNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p PlatformKind) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PlatformKind) UnmarshalText(b []byte) error {
	*p = ParsePlatform(string(b))
	return nil
}
