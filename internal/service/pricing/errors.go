package pricing

import (
	"errors"
	"fmt"
)

var (
	ErrPetNotFound    = errors.New("pet not found")
	ErrWeightRequired = errors.New("pet weight must be set to price services")
)

// Addon rejection reasons surfaced to callers.
const (
	ReasonNotFound        = "not_found"
	ReasonNotAddon        = "not_addon"
	ReasonNotApplicable   = "not_applicable"
	ReasonMissingRequires = "missing_requires"
)

// BaseServiceError reports why the requested base service cannot anchor a
// quote.
type BaseServiceError struct {
	ServiceID string
	Reason    string
}

func (e *BaseServiceError) Error() string {
	return fmt.Sprintf("base service %s rejected: %s", e.ServiceID, e.Reason)
}

// AddonError reports why a single addon was rejected from a quote.
type AddonError struct {
	AddonID string
	Reason  string
}

func (e *AddonError) Error() string {
	return fmt.Sprintf("addon %s rejected: %s", e.AddonID, e.Reason)
}

// RequiredAddonError is returned when a breed rule mandates an addon that the
// request did not include.
type RequiredAddonError struct {
	Breed   string
	AddonID string
}

func (e *RequiredAddonError) Error() string {
	return fmt.Sprintf("breed %s requires addon %s", e.Breed, e.AddonID)
}
