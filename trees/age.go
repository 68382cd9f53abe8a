package trees

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Age is the edad value exactly as it was entered. Inventories imported from
// the offline client carry numbers, numeric strings, free text or nothing at
// all, so the raw text is kept and interpreted on demand.
type Age struct {
	raw     string
	present bool
}

// AgeOf returns an age of the given number of years.
func AgeOf(years int) Age {
	return Age{raw: strconv.Itoa(years), present: true}
}

// ParseAge wraps raw form text. Blank text is an absent age.
func ParseAge(raw string) Age {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Age{}
	}
	return Age{raw: trimmed, present: true}
}

// Present reports whether any value was supplied.
func (a Age) Present() bool {
	return a.present
}

// wholeYearsRE matches integer text with an optional fractional part.
// Exponents and other float spellings are not ages.
var wholeYearsRE = regexp.MustCompile(`^([+-]?\d+)(?:\.\d*)?$`)

// Years returns the age as a whole number of years. Decimal values are
// truncated toward zero; anything else, including values out of int range,
// reports false.
func (a Age) Years() (int, bool) {
	if !a.present {
		return 0, false
	}
	m := wholeYearsRE.FindStringSubmatch(a.raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Nullable returns the age for a nullable integer column.
func (a Age) Nullable() *int64 {
	n, ok := a.Years()
	if !ok {
		return nil
	}
	v := int64(n)
	return &v
}

// Equal reports whether both ages hold the same raw value.
func (a Age) Equal(b Age) bool {
	return a == b
}

// String returns the raw text, or "" when absent.
func (a Age) String() string {
	return a.raw
}

// MarshalJSON writes numeric ages as numbers, other text as a string and an
// absent age as null.
func (a Age) MarshalJSON() ([]byte, error) {
	if !a.present {
		return []byte("null"), nil
	}
	if n, err := strconv.Atoi(a.raw); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(a.raw)
}

// UnmarshalJSON accepts null, a number or a string.
func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Age{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ParseAge(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = ParseAge(n.String())
	return nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON in seed files.
func (a *Age) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		*a = Age{}
		return nil
	}
	*a = ParseAge(node.Value)
	return nil
}

// MarshalYAML writes the raw value, or null when absent.
func (a Age) MarshalYAML() (any, error) {
	if !a.present {
		return nil, nil
	}
	if n, err := strconv.Atoi(a.raw); err == nil {
		return n, nil
	}
	return a.raw, nil
}
