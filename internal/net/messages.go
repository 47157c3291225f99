package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"hati/internal/book"
	"hati/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidDecimal     = errors.New("invalid decimal field")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	SubmitOrder
	CancelOrder
	GetDepth
	GetQuote
	GetBalance
)

type ReportMessageType int

const (
	SubmitReport ReportMessageType = iota
	CancelReport
	DepthReport
	QuoteReport
	BalanceReport
	ExecutionReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
	Serialize() []byte
}

// Message format constants
const (
	BaseMessageHeaderLen = 2
	ReportLenPrefix      = 4
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func (m BaseMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf, uint16(m.TypeOf))
	return buf
}

// Length-prefixed fields carry a single length byte, so nothing longer
// than this can be framed.
const maxFieldLen = 255

// appendString8 appends a length byte followed by the string. Over-long
// input is capped rather than letting the length byte wrap and corrupt
// the frame.
func appendString8(buf []byte, s string) []byte {
	if len(s) > maxFieldLen {
		s = s[:maxFieldLen]
	}
	buf = append(buf, uint8(len(s)))
	return append(buf, s...)
}

// readString8 consumes one length-prefixed string and returns the rest.
func readString8(buf []byte) (string, []byte, error) {
	if len(buf) < 1 {
		return "", nil, ErrMessageTooShort
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return "", nil, ErrMessageTooShort
	}
	return string(buf[1 : 1+n]), buf[1+n:], nil
}

func readDecimal8(buf []byte) (decimal.Decimal, []byte, error) {
	s, rest, err := readString8(buf)
	if err != nil {
		return decimal.Zero, nil, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	return d, rest, nil
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("%w: missing header", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case SubmitOrder:
		return parseSubmitOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case GetDepth:
		return BaseMessage{TypeOf: GetDepth}, nil
	case GetQuote:
		return parseGetQuote(msg)
	case GetBalance:
		return parseGetBalance(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

type SubmitOrderMessage struct {
	BaseMessage
	Side     common.Side     // 1 byte
	Price    decimal.Decimal // length-prefixed string
	Quantity decimal.Decimal // length-prefixed string
	Account  string          // length-prefixed string
}

func (m SubmitOrderMessage) Serialize() []byte {
	buf := m.BaseMessage.Serialize()
	buf = append(buf, byte(m.Side))
	buf = appendString8(buf, m.Price.String())
	buf = appendString8(buf, m.Quantity.String())
	return appendString8(buf, m.Account)
}

func parseSubmitOrder(msg []byte) (SubmitOrderMessage, error) {
	m := SubmitOrderMessage{BaseMessage: BaseMessage{TypeOf: SubmitOrder}}
	if len(msg) < 1 {
		return SubmitOrderMessage{}, ErrMessageTooShort
	}
	m.Side = common.Side(msg[0])
	msg = msg[1:]

	var err error
	if m.Price, msg, err = readDecimal8(msg); err != nil {
		return SubmitOrderMessage{}, err
	}
	if m.Quantity, msg, err = readDecimal8(msg); err != nil {
		return SubmitOrderMessage{}, err
	}
	if m.Account, _, err = readString8(msg); err != nil {
		return SubmitOrderMessage{}, err
	}
	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	OrderUUID string // length-prefixed string
	Account   string // length-prefixed string
}

func (m CancelOrderMessage) Serialize() []byte {
	buf := m.BaseMessage.Serialize()
	buf = appendString8(buf, m.OrderUUID)
	return appendString8(buf, m.Account)
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	var err error
	if m.OrderUUID, msg, err = readString8(msg); err != nil {
		return CancelOrderMessage{}, err
	}
	if m.Account, _, err = readString8(msg); err != nil {
		return CancelOrderMessage{}, err
	}
	return m, nil
}

type GetQuoteMessage struct {
	BaseMessage
	Side     common.Side     // 1 byte
	Quantity decimal.Decimal // length-prefixed string
}

func (m GetQuoteMessage) Serialize() []byte {
	buf := m.BaseMessage.Serialize()
	buf = append(buf, byte(m.Side))
	return appendString8(buf, m.Quantity.String())
}

func parseGetQuote(msg []byte) (GetQuoteMessage, error) {
	m := GetQuoteMessage{BaseMessage: BaseMessage{TypeOf: GetQuote}}
	if len(msg) < 1 {
		return GetQuoteMessage{}, ErrMessageTooShort
	}
	m.Side = common.Side(msg[0])
	var err error
	if m.Quantity, _, err = readDecimal8(msg[1:]); err != nil {
		return GetQuoteMessage{}, err
	}
	return m, nil
}

type GetBalanceMessage struct {
	BaseMessage
	Account string // length-prefixed string
}

func (m GetBalanceMessage) Serialize() []byte {
	return appendString8(m.BaseMessage.Serialize(), m.Account)
}

func parseGetBalance(msg []byte) (GetBalanceMessage, error) {
	m := GetBalanceMessage{BaseMessage: BaseMessage{TypeOf: GetBalance}}
	var err error
	if m.Account, _, err = readString8(msg); err != nil {
		return GetBalanceMessage{}, err
	}
	return m, nil
}

// Report is one server-to-client frame. Exactly one of the payload groups
// is populated, selected by TypeOf. On the wire a report is preceded by a
// 4-byte big-endian total length so clients can frame the stream.
type Report struct {
	TypeOf ReportMessageType // 1 byte

	// SubmitReport
	OrderUUID string
	Filled    string
	Remaining string

	// QuoteReport
	Notional string

	// DepthReport
	Levels []book.DepthLevel

	// BalanceReport
	Balances map[string]decimal.Decimal

	// ExecutionReport
	Side         common.Side
	Price        string
	Quantity     string
	Counterparty string

	// ErrorReport
	Err string
}

// Serialize converts the report to be sent on the wire, including the
// length prefix.
func (r *Report) Serialize() []byte {
	body := []byte{byte(r.TypeOf)}

	switch r.TypeOf {
	case SubmitReport:
		body = appendString8(body, r.OrderUUID)
		body = appendString8(body, r.Filled)
		body = appendString8(body, r.Remaining)
	case CancelReport:
		// Ack only; no payload.
	case QuoteReport:
		body = appendString8(body, r.Notional)
	case DepthReport:
		count := make([]byte, 2)
		binary.BigEndian.PutUint16(count, uint16(len(r.Levels)))
		body = append(body, count...)
		for _, level := range r.Levels {
			body = append(body, byte(level.Side))
			body = appendString8(body, level.Price.String())
			body = appendString8(body, level.Quantity.String())
		}
	case BalanceReport:
		body = append(body, uint8(len(r.Balances)))
		for asset, balance := range r.Balances {
			body = appendString8(body, asset)
			body = appendString8(body, balance.String())
		}
	case ExecutionReport:
		body = append(body, byte(r.Side))
		body = appendString8(body, r.OrderUUID)
		body = appendString8(body, r.Price)
		body = appendString8(body, r.Quantity)
		body = appendString8(body, r.Counterparty)
	case ErrorReport:
		errLen := make([]byte, 4)
		binary.BigEndian.PutUint32(errLen, uint32(len(r.Err)))
		body = append(body, errLen...)
		body = append(body, r.Err...)
	}

	framed := make([]byte, ReportLenPrefix, ReportLenPrefix+len(body))
	binary.BigEndian.PutUint32(framed, uint32(len(body)))
	return append(framed, body...)
}

// ParseReport decodes one report body (the bytes after the length prefix).
func ParseReport(body []byte) (Report, error) {
	if len(body) < 1 {
		return Report{}, ErrMessageTooShort
	}
	r := Report{TypeOf: ReportMessageType(body[0])}
	body = body[1:]
	var err error

	switch r.TypeOf {
	case SubmitReport:
		if r.OrderUUID, body, err = readString8(body); err != nil {
			return Report{}, err
		}
		if r.Filled, body, err = readString8(body); err != nil {
			return Report{}, err
		}
		if r.Remaining, _, err = readString8(body); err != nil {
			return Report{}, err
		}
	case CancelReport:
	case QuoteReport:
		if r.Notional, _, err = readString8(body); err != nil {
			return Report{}, err
		}
	case DepthReport:
		if len(body) < 2 {
			return Report{}, ErrMessageTooShort
		}
		count := int(binary.BigEndian.Uint16(body[0:2]))
		body = body[2:]
		for i := 0; i < count; i++ {
			if len(body) < 1 {
				return Report{}, ErrMessageTooShort
			}
			level := book.DepthLevel{Side: common.Side(body[0])}
			body = body[1:]
			if level.Price, body, err = readDecimal8(body); err != nil {
				return Report{}, err
			}
			if level.Quantity, body, err = readDecimal8(body); err != nil {
				return Report{}, err
			}
			r.Levels = append(r.Levels, level)
		}
	case BalanceReport:
		if len(body) < 1 {
			return Report{}, ErrMessageTooShort
		}
		count := int(body[0])
		body = body[1:]
		r.Balances = make(map[string]decimal.Decimal, count)
		for i := 0; i < count; i++ {
			var asset string
			var balance decimal.Decimal
			if asset, body, err = readString8(body); err != nil {
				return Report{}, err
			}
			if balance, body, err = readDecimal8(body); err != nil {
				return Report{}, err
			}
			r.Balances[asset] = balance
		}
	case ExecutionReport:
		if len(body) < 1 {
			return Report{}, ErrMessageTooShort
		}
		r.Side = common.Side(body[0])
		body = body[1:]
		if r.OrderUUID, body, err = readString8(body); err != nil {
			return Report{}, err
		}
		if r.Price, body, err = readString8(body); err != nil {
			return Report{}, err
		}
		if r.Quantity, body, err = readString8(body); err != nil {
			return Report{}, err
		}
		if r.Counterparty, _, err = readString8(body); err != nil {
			return Report{}, err
		}
	case ErrorReport:
		if len(body) < 4 {
			return Report{}, ErrMessageTooShort
		}
		errLen := int(binary.BigEndian.Uint32(body[0:4]))
		if len(body) < 4+errLen {
			return Report{}, ErrMessageTooShort
		}
		r.Err = string(body[4 : 4+errLen])
	default:
		return Report{}, ErrInvalidMessageType
	}
	return r, nil
}
