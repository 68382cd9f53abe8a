package formvalue

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/protoarbol/catastro/trees"
)

var unitSuffixRE = regexp.MustCompile(`(?i)\s*(m|mts|metros|años|anos|years)\.?$`)

// ParseHeight reads a height such as "12.5", "12,5" or "12 m".
func ParseHeight(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("height is required")
	}
	trimmed = unitSuffixRE.ReplaceAllString(trimmed, "")
	trimmed = strings.Replace(trimmed, ",", ".", 1)
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, errors.New("invalid height")
	}
	return parsed, nil
}

func ParseOptionalHeight(value string) (*float64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := ParseHeight(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseAge keeps the typed text, stripping a trailing unit.
func ParseAge(value string) trees.Age {
	return trees.ParseAge(unitSuffixRE.ReplaceAllString(strings.TrimSpace(value), ""))
}

func ParseCoordinate(value string, limit float64) (float64, error) {
	trimmed := strings.Replace(strings.TrimSpace(value), ",", ".", 1)
	if trimmed == "" {
		return 0, errors.New("coordinate is required")
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.Abs(parsed) > limit {
		return 0, fmt.Errorf("invalid coordinate %q", value)
	}
	return parsed, nil
}

// ReadImage loads a picture from disk as a base64 data URL. Files over
// maxBytes are rejected before encoding; zero disables the bound.
func ReadImage(path string, maxBytes int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("image file is empty")
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return "", fmt.Errorf("image is %d bytes, limit is %d", len(data), maxBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
