package wire

import (
	"errors"
	"fmt"
)

// Frame sizes.
const (
	FrameSize    = 9
	ResponseSize = 4
)

// Type tags.
const (
	TagInsert byte = 'I'
	TagQuery  byte = 'Q'
)

// ErrInvalidMessageType is returned when a frame carries an unknown type tag.
var ErrInvalidMessageType = errors.New("invalid message type")

// Message is either an Insert or a Query.
type Message interface {
	tag() byte
}

// Insert records a price observed at a timestamp.
type Insert struct {
	Timestamp int32
	Price     int32
}

// Query asks for the mean price over [MinTime, MaxTime], inclusive.
type Query struct {
	MinTime int32
	MaxTime int32
}

func (Insert) tag() byte { return TagInsert }
func (Query) tag() byte  { return TagQuery }

func (m Insert) String() string {
	return fmt.Sprintf("I(ts=%d price=%d)", m.Timestamp, m.Price)
}

func (m Query) String() string {
	return fmt.Sprintf("Q(min=%d max=%d)", m.MinTime, m.MaxTime)
}
