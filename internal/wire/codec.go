package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DecodeFrame decodes one 9-byte request frame.
func DecodeFrame(frame [FrameSize]byte) (Message, error) {
	a := int32(binary.BigEndian.Uint32(frame[1:5]))
	b := int32(binary.BigEndian.Uint32(frame[5:9]))

	switch frame[0] {
	case TagInsert:
		return Insert{Timestamp: a, Price: b}, nil
	case TagQuery:
		return Query{MinTime: a, MaxTime: b}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidMessageType, frame[0])
	}
}

// EncodeFrame encodes m as a 9-byte request frame.
func EncodeFrame(m Message) [FrameSize]byte {
	var frame [FrameSize]byte
	frame[0] = m.tag()

	switch v := m.(type) {
	case Insert:
		binary.BigEndian.PutUint32(frame[1:5], uint32(v.Timestamp))
		binary.BigEndian.PutUint32(frame[5:9], uint32(v.Price))
	case Query:
		binary.BigEndian.PutUint32(frame[1:5], uint32(v.MinTime))
		binary.BigEndian.PutUint32(frame[5:9], uint32(v.MaxTime))
	}
	return frame
}

// ReadMessage reads and decodes exactly one frame from r.
//
// It returns io.EOF if r ends on a frame boundary and io.ErrUnexpectedEOF
// if r ends part way through a frame.
func ReadMessage(r io.Reader) (Message, error) {
	var frame [FrameSize]byte
	if _, err := io.ReadFull(r, frame[:]); err != nil {
		return nil, err
	}
	return DecodeFrame(frame)
}

// WriteMessage encodes m and writes it to w.
func WriteMessage(w io.Writer, m Message) error {
	frame := EncodeFrame(m)
	_, err := w.Write(frame[:])
	return err
}

// AppendMean appends the 4-byte response for mean to dst.
func AppendMean(dst []byte, mean int32) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(mean))
}

// WriteMean writes the 4-byte response for mean to w.
func WriteMean(w io.Writer, mean int32) error {
	var buf [ResponseSize]byte
	_, err := w.Write(AppendMean(buf[:0], mean))
	return err
}

// ReadMean reads one 4-byte query response from r.
func ReadMean(r io.Reader) (int32, error) {
	var buf [ResponseSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}
