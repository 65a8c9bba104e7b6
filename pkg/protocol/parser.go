// Package protocol reassembles base-station frames from a raw byte stream
// and routes sensor reports to the sensor store.
package protocol

import (
	"fmt"
	"log"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
)

// State is the position of the parser inside a frame.
type State uint8

const (
	SeekStart State = iota + 1
	SeekType
	SeekDest
	SeekAMType
	SeekAMGroup
	SeekLen
	SeekPayload
	SeekCRC
	SeekEnd
)

var stateNames = map[State]string{
	SeekStart:   "SeekStart",
	SeekType:    "SeekType",
	SeekDest:    "SeekDest",
	SeekAMType:  "SeekAMType",
	SeekAMGroup: "SeekAMGroup",
	SeekLen:     "SeekLen",
	SeekPayload: "SeekPayload",
	SeekCRC:     "SeekCRC",
	SeekEnd:     "SeekEnd",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// escaped reports whether marker bytes are escape-significant in s.
func (s State) escaped() bool {
	return s >= SeekDest && s <= SeekCRC
}

// Parser is the frame reassembly state machine for one byte stream.
// It is not safe for concurrent use: bytes must be fed by one goroutine.
type Parser struct {
	dispatcher  Dispatcher
	metrics     *metrics.Metrics
	maxFrameLen int
	checkCRC    bool

	state       State
	bytesRead   int
	bytesToRead int
	buf         []byte

	// The marker byte that opened a pending escape, 0 if none
	nextIsSpecial byte
}

type ParserOption func(*Parser)

// WithMaxFrameLen bounds the accumulation buffer. Values below the size of
// an empty frame are raised to it.
func WithMaxFrameLen(n int) ParserOption {
	return func(p *Parser) {
		if n < minFrameLen {
			n = minFrameLen
		}
		p.maxFrameLen = n
	}
}

// WithCRCCheck drops frames whose CRC field does not match.
func WithCRCCheck(enabled bool) ParserOption {
	return func(p *Parser) {
		p.checkCRC = enabled
	}
}

func WithMetrics(m *metrics.Metrics) ParserOption {
	return func(p *Parser) {
		p.metrics = m
	}
}

// NewParser creates a parser that hands every complete frame to d.
func NewParser(d Dispatcher, opts ...ParserOption) *Parser {
	p := &Parser{
		dispatcher:  d,
		maxFrameLen: DefaultMaxFrameLen,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buf = make([]byte, 0, p.maxFrameLen)
	p.Reset()
	return p
}

// Reset discards the in-flight frame and waits for a new start marker.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.nextIsSpecial = 0
	p.setState(SeekStart, 1)
}

func (p *Parser) setState(s State, bytesToRead int) {
	p.state = s
	p.bytesToRead = bytesToRead
	p.bytesRead = 0
}

func (p *Parser) State() State {
	return p.state
}

// Pending returns a copy of the bytes accumulated for the in-flight frame.
func (p *Parser) Pending() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Write feeds p to the parser. It never fails, so a serial port can be
// io.Copy'd straight into it.
func (p *Parser) Write(data []byte) (int, error) {
	p.Feed(data)
	return len(data), nil
}

// Feed consumes all of data. A single call drives as many state
// transitions as the bytes allow; a partially received frame is resumed
// on the next call.
func (p *Parser) Feed(data []byte) {
	p.metrics.AddBytes(len(data))

	i := 0
	for {
		if p.fill(data, &i) {
			p.advance()
			continue
		}
		if i >= len(data) {
			return
		}
	}
}

// fill moves bytes from data into the frame buffer until the current state
// has what it needs or data runs out. It returns true when the state is
// satisfied.
func (p *Parser) fill(data []byte, i *int) bool {
	useSpecials := p.state.escaped()

	for *i < len(data) && p.bytesRead < p.bytesToRead {
		b := data[*i]
		*i++

		switch {
		case p.state == SeekStart:
			// Hunt for the start marker, anything else is line noise.
			if b != FrameFlag {
				continue
			}
		case p.state == SeekType && b == FrameFlag:
			// Back-to-back markers: the newer one starts the frame.
			continue
		case useSpecials && p.nextIsSpecial != 0:
			if p.nextIsSpecial == EscapeByte {
				b ^= EscapeXor
			}
			p.nextIsSpecial = 0
		case useSpecials && (b == FrameFlag || b == EscapeByte):
			p.nextIsSpecial = b
			continue
		}

		if len(p.buf) == p.maxFrameLen {
			log.Printf("Frame buffer would overflow [max %d bytes], resyncing: % x", p.maxFrameLen, p.buf)
			p.metrics.FrameDropped(metrics.DropOverflow)
			p.Reset()
			return false
		}
		p.buf = append(p.buf, b)
		p.bytesRead++
	}

	return p.bytesRead == p.bytesToRead
}

// advance moves to the state following a satisfied one.
func (p *Parser) advance() {
	switch p.state {
	case SeekStart:
		p.setState(SeekType, 1)
	case SeekType:
		p.setState(SeekDest, 2)
	case SeekDest:
		p.setState(SeekAMType, 1)
	case SeekAMType:
		p.setState(SeekAMGroup, 1)
	case SeekAMGroup:
		p.setState(SeekLen, 1)
	case SeekLen:
		p.setState(SeekPayload, int(p.buf[len(p.buf)-1]))
	case SeekPayload:
		p.setState(SeekCRC, 2)
	case SeekCRC:
		p.setState(SeekEnd, 1)
	case SeekEnd:
		p.complete()
		p.Reset()
	default:
		p.Reset()
	}
}

// complete validates the trailer of a fully received frame and dispatches it.
func (p *Parser) complete() {
	frame := p.buf

	if frame[len(frame)-1] != FrameFlag {
		log.Printf("Frame end marker is 0x%02x, dropping frame", frame[len(frame)-1])
		p.metrics.FrameDropped(metrics.DropBadEnd)
		return
	}

	if p.checkCRC {
		if want, got := frameCRC(frame), frameCRCField(frame); want != got {
			log.Printf("Wrong CRC: 0x%04x != 0x%04x, dropping frame", got, want)
			p.metrics.FrameDropped(metrics.DropCRC)
			return
		}
	}

	p.metrics.FrameAccepted()
	if p.dispatcher != nil {
		p.dispatcher.Dispatch(frame)
	}
}
