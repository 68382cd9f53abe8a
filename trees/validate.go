package trees

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

// ValidationError reports a field that blocks submission. It is raised before
// any request reaches a RecordStore.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Rules tunes validation for a deployment profile.
type Rules struct {
	// MaxImageBytes bounds the decoded image size; zero disables the check.
	MaxImageBytes int
	// RequireAge rejects records without a numeric age.
	RequireAge bool
}

// Validate checks t before it is submitted to a store.
func Validate(t Tree, rules Rules) error {
	if strings.TrimSpace(t.CommonName) == "" {
		return invalid("nom_arbol", "common name is required")
	}
	if !ParseHealth(t.Health).Known() {
		return invalid("estado", "health state must be one of Saludable, Regular, Malo, Muerto")
	}
	if !t.HasValidPosition() {
		return invalid("lat", "position must be finite decimal degrees")
	}
	if t.Age.Present() {
		years, ok := t.Age.Years()
		if !ok {
			return invalid("edad", "age must be a whole number of years")
		}
		if years < 0 {
			return invalid("edad", "age must be zero or positive")
		}
	} else if rules.RequireAge {
		return invalid("edad", "age is required")
	}
	if t.Height != nil && (*t.Height < 0 || math.IsNaN(*t.Height) || math.IsInf(*t.Height, 0)) {
		return invalid("altura", "height must be zero or positive")
	}
	return ValidateImage(t.Image, rules.MaxImageBytes)
}

// ValidateImage accepts an absent image or a complete base64 payload, either
// bare or as a data URL, whose decoded size is within maxBytes.
func ValidateImage(image *string, maxBytes int) error {
	if image == nil {
		return nil
	}
	payload := strings.TrimSpace(*image)
	if payload == "" {
		return invalid("imagen", "image upload is incomplete")
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return invalid("imagen", "image must be a base64 data URL")
		}
		payload = payload[comma+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(decoded) == 0 {
		return invalid("imagen", "image upload is incomplete")
	}
	if maxBytes > 0 && len(decoded) > maxBytes {
		return invalid("imagen", fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	return nil
}
