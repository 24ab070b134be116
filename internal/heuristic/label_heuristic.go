// Package heuristic derives a coarse disease key from the name of a selected
// image.
package heuristic

import (
	"strings"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// DeriveKey returns the coarse disease key for a selection. The file name wins
// over the URI; when it is empty the last path segment of the URI is used.
func DeriveKey(fileName, uri string) models.DiseaseKey {
	return KeyForName(NormalizedName(fileName, uri))
}

// NormalizedName returns the lowercased name the heuristic matches against.
func NormalizedName(fileName, uri string) string {
	if name := strings.ToLower(fileName); name != "" {
		return name
	}
	if uri == "" {
		return ""
	}
	segments := strings.Split(uri, "/")
	return strings.ToLower(segments[len(segments)-1])
}

// KeyForName matches an already normalized name. Checks run in priority
// order and the first hit wins.
func KeyForName(name string) models.DiseaseKey {
	switch {
	case name == "":
		return models.KeyUnknown
	case strings.Contains(name, "late_blight"):
		return models.KeyPotatoLateBlight
	case strings.Contains(name, "early_blight"):
		return models.KeyPotatoEarlyBlight
	case strings.Contains(name, "healthy"):
		if strings.Contains(name, "potato") {
			return models.KeyPotatoHealthy
		}
		return models.KeyPepperHealthy
	case strings.Contains(name, "bacterial_spot"):
		return models.KeyPepperBacterialSpot
	default:
		return models.KeyUnknown
	}
}
