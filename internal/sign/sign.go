// Package sign defines the translation direction and sign-language variant shared across signbridge.
package sign

import "fmt"

// Direction is the active translation direction.
type Direction int

const (
	// TextToSign renders typed or dictated text as a pose sequence.
	TextToSign Direction = iota
	// SignToText recognizes camera gestures as text.
	SignToText
)

// String returns the wire name of the direction.
func (d Direction) String() string {
	switch d {
	case SignToText:
		return "signToText"
	default:
		return "textToSign"
	}
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == TextToSign {
		return SignToText
	}
	return TextToSign
}

// ParseDirection parses a wire name produced by Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "textToSign":
		return TextToSign, nil
	case "signToText":
		return SignToText, nil
	}
	return TextToSign, fmt.Errorf("unknown direction %q", s)
}

// Variant is the active sign-language convention.
type Variant int

const (
	// ASL is American Sign Language.
	ASL Variant = iota
	// ISL is Indian Sign Language.
	ISL
)

// String returns the short name of the variant.
func (v Variant) String() string {
	switch v {
	case ISL:
		return "isl"
	default:
		return "asl"
	}
}

// Code returns the signed-language code used by the pose lookup service.
func (v Variant) Code() string {
	switch v {
	case ISL:
		return "ins"
	default:
		return "ase"
	}
}

// DisplayName returns the full name of the variant.
func (v Variant) DisplayName() string {
	switch v {
	case ISL:
		return "Indian Sign Language"
	default:
		return "American Sign Language"
	}
}

// Toggle returns the other variant.
func (v Variant) Toggle() Variant {
	if v == ASL {
		return ISL
	}
	return ASL
}

// ParseVariant parses a short name produced by Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "asl":
		return ASL, nil
	case "isl":
		return ISL, nil
	}
	return ASL, fmt.Errorf("unknown variant %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
