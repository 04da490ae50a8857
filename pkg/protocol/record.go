package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Record is the JSON form of a Message, used for run recordings.
type Record struct {
	Kind    Kind           `json:"kind"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

func NewRecord(m Message, at time.Time) Record {
	return Record{Kind: m.Kind, At: at, Payload: m.Payload}
}

// MarshalJSON writes NaN and infinite payload numbers as the strings "NaN",
// "+Inf" and "-Inf". The payload accessors read them back as floats.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	out := plain(r)
	if r.Payload != nil {
		out.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			out.Payload[k] = encodeNonFinite(v)
		}
	}
	return json.Marshal(out)
}

func encodeNonFinite(v any) any {
	switch t := v.(type) {
	case float64:
		return finiteOrString(t)
	case float32:
		return finiteOrString(float64(t))
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = finiteOrString(f)
		}
		return out
	case []float32:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = finiteOrString(float64(f))
		}
		return out
	case [][]float64:
		out := make([]any, len(t))
		for i, row := range t {
			out[i] = encodeNonFinite(row)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodeNonFinite(e)
		}
		return out
	case map[string]float64:
		out := make(map[string]any, len(t))
		for k, f := range t {
			out[k] = finiteOrString(f)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = encodeNonFinite(e)
		}
		return out
	}
	return v
}

func finiteOrString(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

func (r Record) Message() Message {
	return New(r.Kind, r.Payload)
}

// DecodeRecord parses one record. Numbers are kept as float64, which the
// payload accessors understand.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, errors.Wrap(err, "parse record")
	}
	if r.Payload == nil {
		r.Payload = map[string]any{}
	}
	return r, nil
}

// ReadRecords reads a JSON-lines recording. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 64<<20)
	var out []Record
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := DecodeRecord(b)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	return out, nil
}
