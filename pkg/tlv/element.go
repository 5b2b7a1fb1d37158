// Package tlv implements a general-purpose Tag-Length-Value binary codec.
// It is used by the packet and credential codecs in this module to encode
// and decode their wire structures; it carries no knowledge of those
// higher-level formats.
package tlv

// ElementType identifies the type of a TLV element, encoded in the lower
// 5 bits of the control octet.
type ElementType int

const (
	ElementTypeInt8    ElementType = 0x00
	ElementTypeInt16   ElementType = 0x01
	ElementTypeInt32   ElementType = 0x02
	ElementTypeInt64   ElementType = 0x03
	ElementTypeUInt8   ElementType = 0x04
	ElementTypeUInt16  ElementType = 0x05
	ElementTypeUInt32  ElementType = 0x06
	ElementTypeUInt64  ElementType = 0x07
	ElementTypeFalse   ElementType = 0x08
	ElementTypeTrue    ElementType = 0x09
	ElementTypeFloat32 ElementType = 0x0A
	ElementTypeFloat64 ElementType = 0x0B
	ElementTypeUTF8_1  ElementType = 0x0C
	ElementTypeUTF8_2  ElementType = 0x0D
	ElementTypeUTF8_4  ElementType = 0x0E
	ElementTypeUTF8_8  ElementType = 0x0F
	ElementTypeBytes1  ElementType = 0x10
	ElementTypeBytes2  ElementType = 0x11
	ElementTypeBytes4  ElementType = 0x12
	ElementTypeBytes8  ElementType = 0x13
	ElementTypeNull    ElementType = 0x14
	ElementTypeStruct  ElementType = 0x15
	ElementTypeArray   ElementType = 0x16
	ElementTypeList    ElementType = 0x17
	ElementTypeEnd     ElementType = 0x18
)

func (e ElementType) String() string {
	switch e {
	case ElementTypeInt8:
		return "Int8"
	case ElementTypeInt16:
		return "Int16"
	case ElementTypeInt32:
		return "Int32"
	case ElementTypeInt64:
		return "Int64"
	case ElementTypeUInt8:
		return "UInt8"
	case ElementTypeUInt16:
		return "UInt16"
	case ElementTypeUInt32:
		return "UInt32"
	case ElementTypeUInt64:
		return "UInt64"
	case ElementTypeFalse:
		return "False"
	case ElementTypeTrue:
		return "True"
	case ElementTypeFloat32:
		return "Float32"
	case ElementTypeFloat64:
		return "Float64"
	case ElementTypeUTF8_1, ElementTypeUTF8_2, ElementTypeUTF8_4, ElementTypeUTF8_8:
		return "UTF8String"
	case ElementTypeBytes1, ElementTypeBytes2, ElementTypeBytes4, ElementTypeBytes8:
		return "ByteString"
	case ElementTypeNull:
		return "Null"
	case ElementTypeStruct:
		return "Struct"
	case ElementTypeArray:
		return "Array"
	case ElementTypeList:
		return "List"
	case ElementTypeEnd:
		return "EndOfContainer"
	default:
		return "Unknown"
	}
}

func (e ElementType) IsSignedInt() bool   { return e >= ElementTypeInt8 && e <= ElementTypeInt64 }
func (e ElementType) IsUnsignedInt() bool { return e >= ElementTypeUInt8 && e <= ElementTypeUInt64 }
func (e ElementType) IsInt() bool         { return e.IsSignedInt() || e.IsUnsignedInt() }
func (e ElementType) IsBool() bool        { return e == ElementTypeFalse || e == ElementTypeTrue }
func (e ElementType) IsFloat() bool       { return e == ElementTypeFloat32 || e == ElementTypeFloat64 }
func (e ElementType) IsUTF8String() bool  { return e >= ElementTypeUTF8_1 && e <= ElementTypeUTF8_8 }
func (e ElementType) IsBytes() bool       { return e >= ElementTypeBytes1 && e <= ElementTypeBytes8 }
func (e ElementType) IsString() bool      { return e.IsUTF8String() || e.IsBytes() }
func (e ElementType) IsContainer() bool {
	return e == ElementTypeStruct || e == ElementTypeArray || e == ElementTypeList
}

// ValueSize returns the size in bytes of the value field for fixed-size
// types. It returns 0 for variable-length types and containers.
func (e ElementType) ValueSize() int {
	switch e {
	case ElementTypeInt8, ElementTypeUInt8:
		return 1
	case ElementTypeInt16, ElementTypeUInt16:
		return 2
	case ElementTypeInt32, ElementTypeUInt32, ElementTypeFloat32:
		return 4
	case ElementTypeInt64, ElementTypeUInt64, ElementTypeFloat64:
		return 8
	default:
		return 0
	}
}

// LengthFieldSize returns the size in bytes of the length field for string
// types. It returns 0 for non-string types.
func (e ElementType) LengthFieldSize() int {
	switch e {
	case ElementTypeUTF8_1, ElementTypeBytes1:
		return 1
	case ElementTypeUTF8_2, ElementTypeBytes2:
		return 2
	case ElementTypeUTF8_4, ElementTypeBytes4:
		return 4
	case ElementTypeUTF8_8, ElementTypeBytes8:
		return 8
	default:
		return 0
	}
}

const (
	elementTypeMask = 0x1F
	tagControlMask  = 0xE0
	tagControlShift = 5
)

// ParseControlOctet extracts the element type and tag control from a
// control octet.
func ParseControlOctet(b byte) (ElementType, TagControl) {
	elemType := ElementType(b & elementTypeMask)
	tagCtrl := TagControl((b & tagControlMask) >> tagControlShift)
	return elemType, tagCtrl
}

// BuildControlOctet combines an element type and tag control into a
// control octet.
func BuildControlOctet(elemType ElementType, tagCtrl TagControl) byte {
	return byte(elemType&elementTypeMask) | byte(tagCtrl<<tagControlShift)
}
