package exception

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
)

// Report is the diagnostic record written to the scratch buffer.
type Report struct {
	Kind       string `json:"type"`
	Message    string `json:"message"`
	Diagnostic string `json:"stackTrace"`
}

// Encode serializes r as compact JSON.
func (r Report) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.PhaseEncode, bridgeerrors.KindInternal, err, "encode exception report")
	}
	return data, nil
}

// DecodeReport parses a record read back from a scratch buffer. A trailing
// terminator is ignored.
func DecodeReport(data []byte) (Report, error) {
	if i := len(data) - 1; i >= 0 && data[i] == 0 {
		data = data[:i]
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, bridgeerrors.InvalidFormat(bridgeerrors.PhaseDecode, "exception report", err)
	}
	return r, nil
}

// FromError builds a report for a returned error. The diagnostic lists the
// cause chain, outermost first.
func FromError(err error) Report {
	kind := fmt.Sprintf("%T", err)
	var be *bridgeerrors.Error
	if errors.As(err, &be) {
		kind = string(be.Phase) + "." + string(be.Kind)
	}

	var chain []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	return Report{
		Kind:       kind,
		Message:    err.Error(),
		Diagnostic: strings.Join(chain, "\n"),
	}
}

// FromPanic builds a report for a recovered panic value.
func FromPanic(v any, stack []byte) Report {
	r := Report{Kind: "panic", Diagnostic: string(stack)}
	switch x := v.(type) {
	case error:
		r.Kind = fmt.Sprintf("panic(%T)", x)
		r.Message = x.Error()
	case string:
		r.Message = x
	default:
		r.Message = fmt.Sprint(x)
	}
	return r
}
