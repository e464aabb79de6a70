package protocol

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/wasm-bridge/errors"
)

// Kind is the envelope discriminant.
type Kind int32

const (
	KindUnknown        Kind = 0
	KindStartBattle    Kind = 1
	KindBatchRequest   Kind = 2
	KindBattleResponse Kind = 3
	KindBatchResponse  Kind = 4
	KindBattleInput    Kind = 5
	KindNotification   Kind = 6
	KindError          Kind = 15
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindStartBattle:    "start_battle",
	KindBatchRequest:   "batch_request",
	KindBattleResponse: "battle_response",
	KindBatchResponse:  "batch_response",
	KindBattleInput:    "battle_input",
	KindNotification:   "notification",
	KindError:          "error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Envelope wraps one record with its discriminant. Code and Message are
// only set on KindError envelopes.
type Envelope struct {
	Message string
	Payload []byte
	Kind    Kind
	Code    errors.Status
}

// Reset clears e for reuse and keeps the payload capacity.
func (e *Envelope) Reset() {
	*e = Envelope{Payload: e.Payload[:0]}
}

// Append encodes e onto b.
func (e *Envelope) Append(b []byte) []byte {
	b = appendI32(b, 1, int32(e.Kind))
	b = appendBytes(b, 2, e.Payload)
	b = appendI32(b, 3, int32(e.Code))
	b = appendString(b, 4, e.Message)
	return b
}

// Marshal encodes e into a new slice.
func (e *Envelope) Marshal() []byte { return e.Append(nil) }

// Unmarshal decodes b into e. The payload is copied.
func (e *Envelope) Unmarshal(b []byte) error {
	e.Reset()
	return walk("envelope", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v int32
			n, err := i32("envelope", num, typ, b, &v)
			e.Kind = Kind(v)
			return n, err
		case 2:
			return copyBytes("envelope", num, typ, b, &e.Payload)
		case 3:
			var v int32
			n, err := i32("envelope", num, typ, b, &v)
			e.Code = errors.Status(v)
			return n, err
		case 4:
			return str("envelope", num, typ, b, &e.Message)
		}
		return -1, nil
	})
}

// Err returns the error an error envelope carries, or nil.
func (e *Envelope) Err() error {
	if e.Kind != KindError {
		return nil
	}
	code := e.Code
	if code == errors.StatusSuccess {
		code = errors.StatusInternal
	}
	return errors.FromStatus(errors.PhaseDecode, code, e.Message)
}

// Wrap returns an envelope of kind carrying rec.
func Wrap(kind Kind, rec interface{ Append([]byte) []byte }) *Envelope {
	return &Envelope{Kind: kind, Payload: rec.Append(nil)}
}

// ErrorEnvelope builds a well-formed error response for err.
func ErrorEnvelope(err error) *Envelope {
	return &Envelope{
		Kind:    KindError,
		Code:    errors.StatusOf(err),
		Message: err.Error(),
	}
}
