package tlv

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"
)

// Writer encodes TLV elements to an io.Writer.
type Writer struct {
	w              io.Writer
	containerStack []ElementType
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeControlAndTag(elemType ElementType, tag Tag) error {
	ctrl := BuildControlOctet(elemType, tag.Control())
	if _, err := w.w.Write([]byte{ctrl}); err != nil {
		return err
	}
	_, err := tag.WriteTo(w.w)
	return err
}

// PutUint writes an unsigned integer, choosing the minimum width needed.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	var buf [8]byte
	switch {
	case v <= math.MaxUint8:
		buf[0] = byte(v)
		return w.writeFixedValue(ElementTypeUInt8, tag, buf[:1])
	case v <= math.MaxUint16:
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(ElementTypeUInt16, tag, buf[:2])
	case v <= math.MaxUint32:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(ElementTypeUInt32, tag, buf[:4])
	default:
		binary.LittleEndian.PutUint64(buf[:8], v)
		return w.writeFixedValue(ElementTypeUInt64, tag, buf[:8])
	}
}

// PutUintWithWidth writes an unsigned integer with an exact width (1, 2,
// 4, or 8 bytes), used for fields whose wire width must be stable
// regardless of the value's magnitude (e.g. epoch timestamps).
func (w *Writer) PutUintWithWidth(tag Tag, v uint64, width int) error {
	var buf [8]byte
	switch width {
	case 1:
		buf[0] = byte(v)
		return w.writeFixedValue(ElementTypeUInt8, tag, buf[:1])
	case 2:
		binary.LittleEndian.PutUint16(buf[:2], uint16(v))
		return w.writeFixedValue(ElementTypeUInt16, tag, buf[:2])
	case 4:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		return w.writeFixedValue(ElementTypeUInt32, tag, buf[:4])
	case 8:
		binary.LittleEndian.PutUint64(buf[:8], v)
		return w.writeFixedValue(ElementTypeUInt64, tag, buf[:8])
	default:
		return ErrInvalidElementType
	}
}

func (w *Writer) PutBool(tag Tag, v bool) error {
	elemType := ElementTypeFalse
	if v {
		elemType = ElementTypeTrue
	}
	return w.writeControlAndTag(elemType, tag)
}

func (w *Writer) PutString(tag Tag, v string) error {
	if !utf8.ValidString(v) {
		return ErrInvalidUTF8
	}
	return w.writeStringValue(true, tag, []byte(v))
}

// PutBytes writes an octet string with the given tag.
func (w *Writer) PutBytes(tag Tag, v []byte) error {
	return w.writeStringValue(false, tag, v)
}

func (w *Writer) PutNull(tag Tag) error {
	return w.writeControlAndTag(ElementTypeNull, tag)
}

func (w *Writer) StartStructure(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeStruct, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeStruct)
	return nil
}

func (w *Writer) StartArray(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeArray, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeArray)
	return nil
}

func (w *Writer) StartList(tag Tag) error {
	if err := w.writeControlAndTag(ElementTypeList, tag); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeList)
	return nil
}

func (w *Writer) EndContainer() error {
	if len(w.containerStack) == 0 {
		return ErrNotInContainer
	}
	w.containerStack = w.containerStack[:len(w.containerStack)-1]
	_, err := w.w.Write([]byte{byte(ElementTypeEnd)})
	return err
}

func (w *Writer) ContainerDepth() int { return len(w.containerStack) }

func (w *Writer) writeFixedValue(elemType ElementType, tag Tag, value []byte) error {
	if err := w.writeControlAndTag(elemType, tag); err != nil {
		return err
	}
	_, err := w.w.Write(value)
	return err
}

func (w *Writer) writeStringValue(isUTF8 bool, tag Tag, data []byte) error {
	length := uint64(len(data))

	var elemType ElementType
	var lenBuf [8]byte
	var lenSize int

	switch {
	case length <= math.MaxUint8:
		lenSize = 1
		elemType = pick(isUTF8, ElementTypeUTF8_1, ElementTypeBytes1)
		lenBuf[0] = byte(length)
	case length <= math.MaxUint16:
		lenSize = 2
		elemType = pick(isUTF8, ElementTypeUTF8_2, ElementTypeBytes2)
		binary.LittleEndian.PutUint16(lenBuf[:2], uint16(length))
	case length <= math.MaxUint32:
		lenSize = 4
		elemType = pick(isUTF8, ElementTypeUTF8_4, ElementTypeBytes4)
		binary.LittleEndian.PutUint32(lenBuf[:4], uint32(length))
	default:
		lenSize = 8
		elemType = pick(isUTF8, ElementTypeUTF8_8, ElementTypeBytes8)
		binary.LittleEndian.PutUint64(lenBuf[:8], length)
	}

	if err := w.writeControlAndTag(elemType, tag); err != nil {
		return err
	}
	if _, err := w.w.Write(lenBuf[:lenSize]); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

func pick(cond bool, a, b ElementType) ElementType {
	if cond {
		return a
	}
	return b
}
