package model

import (
	"fmt"
	"strings"

	"github.com/neuron-gateway/gateway/infrastructure/gwerrors"
)

// TagType is the sum type of data point types a tag may carry.
type TagType int

const (
	TypeBit TagType = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeError
	TypePointer
)

// TagAttribute flags, combinable with bitwise OR.
type TagAttribute uint8

const (
	AttrReadable TagAttribute = 1 << iota
	AttrWritable
	AttrSubscribable
	AttrStatic
)

func (a TagAttribute) Has(flag TagAttribute) bool { return a&flag != 0 }

// Tag is a named data point within a group.
type Tag struct {
	Name        string
	Address     string
	Description string
	Type        TagType
	Attribute   TagAttribute
	Precision   *int // 0..17 for floats, nil otherwise
	Decimal     *float64
}

// Validate checks the tag's shape invariants independent of any plugin. The
// plugin's own ValidateTag is an additional, driver-specific check applied
// by internal/manager (and by internal/template for template tags) before
// the tag is accepted into a group.
func (t *Tag) Validate() error {
	if t.Name == "" {
		return gwerrors.New(gwerrors.ParamIsWrong, "tag name is required")
	}
	if len(t.Name) > MaxTagNameLen {
		return gwerrors.NameTooLong("tag", t.Name, MaxTagNameLen)
	}
	if len(t.Address) > MaxTagAddressLen {
		return gwerrors.New(gwerrors.TagAddressTooLong, fmt.Sprintf("tag address exceeds %d bytes", MaxTagAddressLen)).
			WithDetails("tag", t.Name)
	}
	if len(t.Description) > MaxTagDescriptionLen {
		return gwerrors.New(gwerrors.TagDescriptionTooLong, fmt.Sprintf("tag description exceeds %d bytes", MaxTagDescriptionLen)).
			WithDetails("tag", t.Name)
	}
	if t.Precision != nil && (*t.Precision < 0 || *t.Precision > MaxFloatPrecision) {
		return gwerrors.New(gwerrors.ParamIsWrong, "tag precision out of range").
			WithDetails("tag", t.Name).
			WithDetails("precision", *t.Precision)
	}
	return nil
}

// Clone returns a deep copy of the tag.
func (t *Tag) Clone() *Tag {
	clone := *t
	if t.Precision != nil {
		p := *t.Precision
		clone.Precision = &p
	}
	if t.Decimal != nil {
		d := *t.Decimal
		clone.Decimal = &d
	}
	return &clone
}

// NormalizedName returns the tag name trimmed of surrounding whitespace, the
// form used for uniqueness comparisons.
func (t *Tag) NormalizedName() string {
	return strings.TrimSpace(t.Name)
}
