package transfer

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/consts"
	"gopkg.in/yaml.v3"
)

type (
	// Payload is the export/import interchange document: a self-describing
	// top-level mapping from table name to that table's rows. Every table
	// named by a transfer plan must be a key here or it is treated as empty.
	Payload struct {
		// ExportedAt records when the export was taken.
		ExportedAt time.Time `yaml:"exported_at"`

		// Tables maps table name to exported data.
		Tables map[string]*TableData `yaml:"tables"`
	}

	// TableData holds one table's exported rows with a column header so the
	// document stands alone.
	TableData struct {
		// Columns is the column header, in SELECT order.
		Columns []string `yaml:"columns"`

		// Rows holds row values in column order.
		Rows [][]any `yaml:"rows"`

		// Count is the declared row count, checked after import.
		Count int `yaml:"count"`
	}
)

// Table returns the data for a table, or nil when the payload does not
// mention it.
func (p *Payload) Table(name string) *TableData {
	if p == nil || p.Tables == nil {
		return nil
	}
	return p.Tables[name]
}

// Encode writes the payload as YAML.
func (p *Payload) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return errors.Wrap(enc.Encode(p), "failed to encode payload")
}

// ReadPayload parses a payload document from r.
func ReadPayload(r io.Reader) (*Payload, error) {
	var payload Payload
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload")
	}
	return &payload, nil
}

// LoadPayloadFile reads a payload document from the given path.
func LoadPayloadFile(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open payload: %s", path)
	}
	defer func() { _ = f.Close() }()

	return ReadPayload(f)
}

// WritePayloadFile writes a payload document to the given path.
func WritePayloadFile(path string, payload *Payload) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, consts.ModeFile)
	if err != nil {
		return errors.Wrapf(err, "failed to create payload file: %s", path)
	}

	if err := payload.Encode(f); err != nil {
		_ = f.Close()
		return err
	}

	return errors.Wrapf(f.Close(), "failed to close payload file: %s", path)
}
