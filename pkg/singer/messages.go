// Package singer emits the tap's output as a stream of schema-tagged
// messages and manages the bookmark state that makes syncs resumable.
//
// The output contract is ordered and append-only: a stream's SCHEMA message
// precedes its RECORD messages, and a STATE message follows the records whose
// progress it acknowledges.
package singer

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// Message type tags.
const (
	MessageTypeSchema = "SCHEMA"
	MessageTypeRecord = "RECORD"
	MessageTypeState  = "STATE"
)

type schemaMessage struct {
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	Schema        json.RawMessage `json:"schema"`
	KeyProperties []string        `json:"key_properties"`
}

type recordMessage struct {
	Type   string                 `json:"type"`
	Stream string                 `json:"stream"`
	Record map[string]interface{} `json:"record"`
}

type stateMessage struct {
	Type  string `json:"type"`
	Value *State `json:"value"`
}

// Emitter writes messages to a sink, one JSON document per line.
// Not safe for concurrent use; the sync engine is sequential.
type Emitter struct {
	enc *json.Encoder
}

// NewEmitter creates an emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

// WriteSchema emits the SCHEMA message for a stream.
func (e *Emitter) WriteSchema(stream string, schema json.RawMessage, keyProperties []string) error {
	return e.write(schemaMessage{
		Type:          MessageTypeSchema,
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	})
}

// WriteRecord emits one RECORD message.
func (e *Emitter) WriteRecord(stream string, record map[string]interface{}) error {
	return e.write(recordMessage{
		Type:   MessageTypeRecord,
		Stream: stream,
		Record: record,
	})
}

// WriteRecords emits RECORD messages preserving order.
func (e *Emitter) WriteRecords(stream string, records []map[string]interface{}) error {
	for _, record := range records {
		if err := e.WriteRecord(stream, record); err != nil {
			return err
		}
	}
	return nil
}

// WriteState emits a STATE message carrying the full bookmark state.
func (e *Emitter) WriteState(state *State) error {
	return e.write(stateMessage{Type: MessageTypeState, Value: state})
}

func (e *Emitter) write(msg interface{}) error {
	if err := e.enc.Encode(msg); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeUnknown, "failed to write output message")
	}
	return nil
}
