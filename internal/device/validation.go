package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// Validation constants.
const (
	maxNameLength       = 100
	maxIdentifierLength = 64
	macPattern          = `^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$`
)

var macRegex = regexp.MustCompile(macPattern)

// Pre-computed validation set for O(1) lookups.
var validTransports map[Transport]struct{}

func init() {
	validTransports = make(map[Transport]struct{}, len(AllTransports()))
	for _, t := range AllTransports() {
		validTransports[t] = struct{}{}
	}
}

// ValidateDevice checks a device's static configuration.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *WatchedDevice) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := ValidateTransport(d.Transport); err != nil {
		return err
	}

	if d.Address != "" {
		if err := ValidateAddress(d.Address); err != nil {
			return err
		}
	}
	if d.Identifier != "" {
		if err := ValidateIdentifier(d.Identifier); err != nil {
			return err
		}
	}

	switch d.Transport {
	case TransportBLE:
		if d.Address == "" && d.Identifier == "" {
			return fmt.Errorf("%w: %s device %q needs an address or an identifier", ErrInvalidDevice, d.Transport, d.Name)
		}
	case TransportBT, TransportAuto:
		if d.Address == "" {
			return fmt.Errorf("%w: %s device %q needs an address", ErrInvalidAddress, d.Transport, d.Name)
		}
	}

	if d.Confidence < MinConfidence || d.Confidence > MaxConfidence {
		return fmt.Errorf("%w: confidence %d out of range", ErrInvalidDevice, d.Confidence)
	}

	return nil
}

// ValidateIdentifier checks an advertised identifier.
// Separators are ignored; what remains must be an even number of hex
// digits, the only form an advertisement can carry.
func ValidateIdentifier(identifier string) error {
	if len(identifier) > maxIdentifierLength {
		return fmt.Errorf("%w: identifier exceeds %d characters", ErrInvalidDevice, maxIdentifierLength)
	}

	digits := identifierDigits(identifier)
	switch {
	case digits == "":
		return fmt.Errorf("%w: identifier %q has no hex digits", ErrInvalidDevice, identifier)
	case len(digits)%2 != 0:
		return fmt.Errorf("%w: identifier %q has an odd number of hex digits", ErrInvalidDevice, identifier)
	}
	for i := 0; i < len(digits); i++ {
		if !isHexDigit(digits[i]) {
			return fmt.Errorf("%w: identifier %q is not hex", ErrInvalidDevice, identifier)
		}
	}
	return nil
}

// identifierDigits keeps the ASCII letters and digits of s, lower-cased.
func identifierDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// ValidateName checks a device name.
// Names become MQTT topic segments, so wildcards and level separators
// are rejected.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if strings.ContainsAny(name, "+#") {
		return fmt.Errorf("%w: name %q contains an MQTT wildcard", ErrInvalidName, name)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: name %q contains a topic level separator", ErrInvalidName, name)
	}
	return nil
}

// ValidateTransport checks a transport value.
func ValidateTransport(t Transport) error {
	if _, ok := validTransports[t]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTransport, t)
	}
	return nil
}

// ValidateAddress checks a colon-separated 48-bit hardware address.
func ValidateAddress(address string) error {
	if !macRegex.MatchString(address) {
		return fmt.Errorf("%w: %q is not a colon-separated hardware address", ErrInvalidAddress, address)
	}
	return nil
}

// ParseTransport converts a configuration token to a Transport.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTransport(s string) (Transport, error) {
	t := Transport(config.NormalizeBTType(s))
	if err := ValidateTransport(t); err != nil {
		return "", err
	}
	return t, nil
}

// NormalizeAddress upper-cases and trims a hardware address.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}
