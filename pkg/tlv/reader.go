package tlv

import (
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// Reader decodes TLV elements from an io.Reader.
type Reader struct {
	r              io.Reader
	containerStack []ElementType

	hasElement bool
	elemType   ElementType
	tag        Tag
	valueRead  bool

	valueBuf [8]byte
	valueLen int

	stringLen uint64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next advances to the next TLV element, skipping the previous element's
// value if the caller never consumed it. Returns io.EOF at end of input.
func (r *Reader) Next() error {
	if r.hasElement && !r.valueRead {
		if err := r.skipValue(); err != nil {
			return err
		}
	}

	var ctrl [1]byte
	if _, err := io.ReadFull(r.r, ctrl[:]); err != nil {
		return err
	}

	var tagCtrl TagControl
	r.elemType, tagCtrl = ParseControlOctet(ctrl[0])
	if r.elemType > ElementTypeEnd {
		return ErrInvalidElementType
	}

	tag, err := ReadTag(r.r, tagCtrl)
	if err != nil {
		return err
	}
	r.tag = tag

	if err := r.readValueOrLength(); err != nil {
		return err
	}

	r.hasElement = true
	r.valueRead = false
	return nil
}

func (r *Reader) readValueOrLength() error {
	switch {
	case r.elemType.IsInt() || r.elemType.IsFloat():
		r.valueLen = r.elemType.ValueSize()
		if r.valueLen > 0 {
			if _, err := io.ReadFull(r.r, r.valueBuf[:r.valueLen]); err != nil {
				return err
			}
		}
	case r.elemType.IsString():
		lenSize := r.elemType.LengthFieldSize()
		var lenBuf [8]byte
		if _, err := io.ReadFull(r.r, lenBuf[:lenSize]); err != nil {
			return err
		}
		switch lenSize {
		case 1:
			r.stringLen = uint64(lenBuf[0])
		case 2:
			r.stringLen = uint64(binary.LittleEndian.Uint16(lenBuf[:2]))
		case 4:
			r.stringLen = uint64(binary.LittleEndian.Uint32(lenBuf[:4]))
		case 8:
			r.stringLen = binary.LittleEndian.Uint64(lenBuf[:8])
		}
	default:
		r.valueLen = 0
		r.stringLen = 0
	}
	return nil
}

func (r *Reader) Type() ElementType   { return r.elemType }
func (r *Reader) Tag() Tag            { return r.tag }
func (r *Reader) HasElement() bool    { return r.hasElement }

func (r *Reader) Uint() (uint64, error) {
	if !r.hasElement {
		return 0, ErrNoElement
	}
	if r.valueRead {
		return 0, ErrValueAlreadyRead
	}
	if !r.elemType.IsUnsignedInt() {
		return 0, ErrTypeMismatch
	}
	r.valueRead = true
	switch r.elemType {
	case ElementTypeUInt8:
		return uint64(r.valueBuf[0]), nil
	case ElementTypeUInt16:
		return uint64(binary.LittleEndian.Uint16(r.valueBuf[:2])), nil
	case ElementTypeUInt32:
		return uint64(binary.LittleEndian.Uint32(r.valueBuf[:4])), nil
	case ElementTypeUInt64:
		return binary.LittleEndian.Uint64(r.valueBuf[:8]), nil
	}
	return 0, ErrTypeMismatch
}

func (r *Reader) Bool() (bool, error) {
	if !r.hasElement {
		return false, ErrNoElement
	}
	if r.valueRead {
		return false, ErrValueAlreadyRead
	}
	if !r.elemType.IsBool() {
		return false, ErrTypeMismatch
	}
	r.valueRead = true
	return r.elemType == ElementTypeTrue, nil
}

func (r *Reader) String() (string, error) {
	if !r.hasElement {
		return "", ErrNoElement
	}
	if r.valueRead {
		return "", ErrValueAlreadyRead
	}
	if !r.elemType.IsUTF8String() {
		return "", ErrTypeMismatch
	}
	r.valueRead = true
	if r.stringLen == 0 {
		return "", nil
	}
	data := make([]byte, r.stringLen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// Bytes returns the current element as a byte slice.
func (r *Reader) Bytes() ([]byte, error) {
	if !r.hasElement {
		return nil, ErrNoElement
	}
	if r.valueRead {
		return nil, ErrValueAlreadyRead
	}
	if !r.elemType.IsBytes() {
		return nil, ErrTypeMismatch
	}
	r.valueRead = true
	if r.stringLen == 0 {
		return nil, nil
	}
	data := make([]byte, r.stringLen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Reader) Null() error {
	if !r.hasElement {
		return ErrNoElement
	}
	if r.valueRead {
		return ErrValueAlreadyRead
	}
	if r.elemType != ElementTypeNull {
		return ErrTypeMismatch
	}
	r.valueRead = true
	return nil
}

// EnterContainer enters the current structure, array, or list element.
func (r *Reader) EnterContainer() error {
	if !r.hasElement {
		return ErrNoElement
	}
	if !r.elemType.IsContainer() {
		return ErrTypeMismatch
	}
	r.containerStack = append(r.containerStack, r.elemType)
	r.hasElement = false
	r.valueRead = true
	return nil
}

// ExitContainer reads and discards any remaining elements of the current
// container until its end-of-container marker, then pops it.
func (r *Reader) ExitContainer() error {
	if len(r.containerStack) == 0 {
		return ErrNotInContainer
	}
	if r.hasElement && r.elemType == ElementTypeEnd {
		r.containerStack = r.containerStack[:len(r.containerStack)-1]
		r.hasElement = false
		return nil
	}
	depth := 1
	for depth > 0 {
		if err := r.Next(); err != nil {
			return err
		}
		if r.elemType == ElementTypeEnd {
			depth--
		} else if r.elemType.IsContainer() {
			depth++
		}
	}
	r.containerStack = r.containerStack[:len(r.containerStack)-1]
	r.hasElement = false
	return nil
}

func (r *Reader) ContainerDepth() int     { return len(r.containerStack) }
func (r *Reader) IsEndOfContainer() bool  { return r.hasElement && r.elemType == ElementTypeEnd }

// Skip discards the current element, recursing into containers.
func (r *Reader) Skip() error {
	if !r.hasElement {
		return ErrNoElement
	}
	if r.elemType.IsContainer() {
		if err := r.EnterContainer(); err != nil {
			return err
		}
		return r.ExitContainer()
	}
	return r.skipValue()
}

func (r *Reader) skipValue() error {
	if r.valueRead {
		return nil
	}
	r.valueRead = true
	if r.elemType.IsString() && r.stringLen > 0 {
		_, err := io.CopyN(io.Discard, r.r, int64(r.stringLen))
		return err
	}
	return nil
}
