package rowcodec

import (
	"fmt"

	"github.com/linkedin/goavro/v2"

	"reshard/pkg/row"
)

// Schema is the Avro shape of one row: an array of nullable byte columns.
// Null flags map onto the union's null branch.
const Schema = `{
	"type": "record",
	"name": "reshard_row",
	"fields": [
		{"name": "values", "type": {"type": "array", "items": ["null", "bytes"]}}
	]
}`

// Codec converts rows to and from Avro binary.
type Codec struct {
	avro *goavro.Codec
}

func New() (*Codec, error) {
	c, err := goavro.NewCodec(Schema)
	if err != nil {
		return nil, fmt.Errorf("row codec: %w", err)
	}
	return &Codec{avro: c}, nil
}

// Encode renders r as Avro binary, appending to buf.
func (c *Codec) Encode(buf []byte, r row.Row) ([]byte, error) {
	return c.avro.BinaryFromNative(buf, ToNative(r))
}

// Decode parses one Avro-binary row.
func (c *Codec) Decode(data []byte) (row.Row, error) {
	native, _, err := c.avro.NativeFromBinary(data)
	if err != nil {
		return row.Row{}, err
	}
	return FromNative(native)
}

// ToNative converts a row to goavro's native representation.
func ToNative(r row.Row) map[string]interface{} {
	vals := make([]interface{}, len(r.Values))
	for i := range r.Values {
		if r.Nulls[i] {
			vals[i] = nil
			continue
		}
		vals[i] = map[string]interface{}{"bytes": []byte(r.Values[i])}
	}
	return map[string]interface{}{"values": vals}
}

// FromNative converts goavro's native representation back into a row.
func FromNative(native interface{}) (row.Row, error) {
	rec, ok := native.(map[string]interface{})
	if !ok {
		return row.Row{}, fmt.Errorf("row codec: unexpected record type %T", native)
	}
	arr, ok := rec["values"].([]interface{})
	if !ok {
		return row.Row{}, fmt.Errorf("row codec: unexpected values type %T", rec["values"])
	}

	r := row.New(len(arr))
	for i, e := range arr {
		if e == nil {
			r.Nulls[i] = true
			continue
		}
		union, ok := e.(map[string]interface{})
		if !ok {
			return row.Row{}, fmt.Errorf("row codec: unexpected column type %T", e)
		}
		b, ok := union["bytes"].([]byte)
		if !ok {
			return row.Row{}, fmt.Errorf("row codec: unexpected union branch in column %d", i)
		}
		r.Values[i] = b
		r.Nulls[i] = false
	}
	return r, nil
}
