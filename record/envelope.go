package record

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var marshal = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNilRow is returned when an envelope is built from a nil row.
var ErrNilRow = errors.New("cannot build an envelope from a nil row")

// Envelope wraps a record for the publish sink: table name, stable ID,
// occurrence time and the JSON payload. It mirrors the flat shape outbound
// messaging systems expect.
type Envelope struct {
	Table       string    `json:"table"`
	RecordID    string    `json:"record_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	PayloadJSON []byte    `json:"payload"`
}

// NewEnvelope serializes a row into an Envelope.
func NewEnvelope(row Row) (Envelope, error) {
	if row == nil {
		return Envelope{}, ErrNilRow
	}

	payload, err := marshal.Marshal(row)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Table:       row.TableName(),
		RecordID:    row.RecordID(),
		OccurredAt:  row.RecordTime(),
		PayloadJSON: payload,
	}, nil
}

// MarshalJSONValue serializes an arbitrary value with the package's JSON
// configuration. Sinks use it for structured columns such as shipment cargo.
func MarshalJSONValue(v any) ([]byte, error) {
	return marshal.Marshal(v)
}
