package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/dmitriyb/ciyaml/internal/pipeline"
)

// Formats accepted by Encode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// cborMode uses Core Deterministic Encoding so equal batches always produce
// equal bytes. Stage kinds are written as their names.
var cborMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := opts.EncMode()
	if err != nil {
		panic("render: CBOR encoder initialization failed: " + err.Error())
	}
	return mode
}()

// Encode writes batches to w in a machine-readable format.
func Encode(w io.Writer, batches []*pipeline.Batch, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(batches); err != nil {
			return err
		}
		return enc.Close()
	case FormatCBOR:
		return cborMode.NewEncoder(w).Encode(batches)
	}
	return fmt.Errorf("render: unknown format %q (want %s, %s or %s)", format, FormatJSON, FormatYAML, FormatCBOR)
}
