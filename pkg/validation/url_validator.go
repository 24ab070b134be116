package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/AkinduIB/GreenGuard/internal/errors"
)

// URIValidator checks image URIs before they are handed to a fetcher.
type URIValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURIValidator accepts http and https URIs from any host. Other schemes
// are opted in with AllowScheme.
func NewURIValidator() *URIValidator {
	return &URIValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURIValidatorWithOptions creates a validator with custom schemes and
// hosts. Hosts only restrict http and https URIs.
func NewURIValidatorWithOptions(schemes []string, hosts []string) *URIValidator {
	return &URIValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// AllowScheme adds scheme to the allowed list.
func (v *URIValidator) AllowScheme(scheme string) {
	if !v.isSchemeAllowed(scheme) {
		v.allowedSchemes = append(v.allowedSchemes, scheme)
	}
}

// ValidateImageURI validates if the provided URI can be fetched for a preview.
func (v *URIValidator) ValidateImageURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return apperrors.NewValidationError("URI cannot be empty", nil)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return apperrors.NewValidationError("Invalid URI format", err)
	}

	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("URI scheme not allowed", nil).WithDetails(parsed.Scheme)
	}

	switch parsed.Scheme {
	case "http", "https":
		if parsed.Host == "" {
			return apperrors.NewValidationError("URI must have a valid host", nil)
		}
		if !v.isHostAllowed(parsed.Hostname()) {
			return apperrors.NewValidationError("URI host not allowed", nil)
		}
	case "file":
		if parsed.Path == "" {
			return apperrors.NewValidationError("file URI must have a path", nil)
		}
	case "azblob":
		if parsed.Host == "" || strings.TrimPrefix(parsed.Path, "/") == "" {
			return apperrors.NewValidationError("azblob URI must name a container and a blob", nil)
		}
	}

	return nil
}

func (v *URIValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set.
func (v *URIValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
