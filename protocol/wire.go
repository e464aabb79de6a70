package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/wasm-bridge/errors"
)

// field is called for every field of a message. It returns the number of
// bytes of b it consumed, or -1 to skip the field.
type field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(msg string, b []byte, fn field) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return decodeErr(msg, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return decodeErr(msg, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func decodeErr(msg string, cause error) error {
	return errors.InvalidFormat(errors.PhaseDecode, "decode "+msg, cause)
}

func wrongType(msg string, num protowire.Number) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidFormat).
		Detail("decode %s: field %d has wrong wire type", msg, num).
		Build()
}

func varint(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wrongType(msg, num)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, decodeErr(msg, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func u32(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *uint32) (int, error) {
	var v uint64
	n, err := varint(msg, num, typ, b, &v)
	*dst = uint32(v)
	return n, err
}

func i32(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v uint64
	n, err := varint(msg, num, typ, b, &v)
	*dst = int32(int64(v))
	return n, err
}

func i64(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *int64) (int, error) {
	var v uint64
	n, err := varint(msg, num, typ, b, &v)
	*dst = int64(v)
	return n, err
}

func bytesField(msg string, num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wrongType(msg, num)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, decodeErr(msg, protowire.ParseError(n))
	}
	return v, n, nil
}

func str(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, error) {
	v, n, err := bytesField(msg, num, typ, b)
	*dst = string(v)
	return n, err
}

// copyBytes keeps decoded payloads independent of the input buffer.
func copyBytes(msg string, num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	v, n, err := bytesField(msg, num, typ, b)
	if err != nil {
		return 0, err
	}
	*dst = append((*dst)[:0], v...)
	return n, nil
}

func appendU32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendI32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendI64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage writes a length-delimited submessage. Empty submessages
// are still written so that presence survives a round trip.
func appendMessage(b []byte, num protowire.Number, encode func([]byte) []byte) []byte {
	body := encode(nil)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}
