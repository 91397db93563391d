// pkg/record/serde.go
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"keel/internal/encoding"
	"keel/pkg/btree"
	"keel/pkg/schema"
	"keel/pkg/types"
)

var ErrSerde = errors.New("record serde failed")

// Serial types. NULL and the BLOB/TEXT codes match SQLite's; the integer
// widths and REAL use codes 1-5 as listed here, not SQLite's numbering.
const (
	serialNull  = 0
	serialInt8  = 1
	serialInt16 = 2
	serialInt32 = 3
	serialInt64 = 4
	serialReal  = 5
	serialBlob0 = 12 // even >= 12 for BLOB
	serialText0 = 13 // odd >= 13 for TEXT
)

// EncodeKey renders a primary-key value as a byte string whose bytewise
// order matches the value order. Only orderable types have key encodings.
func EncodeKey(v types.Value) ([]byte, error) {
	switch v.Type() {
	case types.TypeInt:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.Int())^(1<<63))
		return buf, nil
	case types.TypeReal:
		bits := math.Float64bits(v.Real())
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case types.TypeText:
		return []byte(v.Text()), nil
	default:
		return nil, fmt.Errorf("%w: %s key is not orderable", ErrSerde, v.Type())
	}
}

// SerializeRecord encodes a record into a cell: the key is the encoded
// primary-key value, the value holds every column, primary key included
func SerializeRecord(r *Record) (btree.Cell, error) {
	pk := r.PrimaryKey()
	if pk.IsNull() {
		return btree.Cell{}, fmt.Errorf("%w: primary key is NULL", ErrSerde)
	}
	key, err := EncodeKey(pk)
	if err != nil {
		return btree.Cell{}, err
	}
	return btree.Cell{Key: key, Value: encodePayload(r.Values())}, nil
}

// DeserializeCell decodes a cell's payload into a record under the schema
func DeserializeCell(cell btree.Cell, s *schema.Schema) (*Record, error) {
	values, err := decodePayload(cell.Value)
	if err != nil {
		return nil, err
	}
	if len(values) != len(s.Columns) {
		return nil, fmt.Errorf("%w: table %s expects %d columns, cell holds %d",
			ErrSerde, s.TableName, len(s.Columns), len(values))
	}
	r := NewRecord(s)
	for i, col := range s.Columns {
		r.values[col.Name] = values[i]
	}
	return r, nil
}

func serialTypeFor(v types.Value) uint64 {
	switch v.Type() {
	case types.TypeNull:
		return serialNull
	case types.TypeInt:
		i := v.Int()
		switch {
		case i >= math.MinInt8 && i <= math.MaxInt8:
			return serialInt8
		case i >= math.MinInt16 && i <= math.MaxInt16:
			return serialInt16
		case i >= math.MinInt32 && i <= math.MaxInt32:
			return serialInt32
		default:
			return serialInt64
		}
	case types.TypeReal:
		return serialReal
	case types.TypeText:
		return serialText0 + uint64(len(v.Text()))*2
	case types.TypeBlob:
		return serialBlob0 + uint64(len(v.Blob()))*2
	default:
		return serialNull
	}
}

func serialSize(st uint64) int {
	switch st {
	case serialNull:
		return 0
	case serialInt8:
		return 1
	case serialInt16:
		return 2
	case serialInt32:
		return 4
	case serialInt64, serialReal:
		return 8
	default:
		if st&1 == 0 {
			return int((st - serialBlob0) / 2)
		}
		return int((st - serialText0) / 2)
	}
}

// encodePayload writes [hdr-size][type0]...[typeN][data0]...[dataN]
func encodePayload(values []types.Value) []byte {
	serials := make([]uint64, len(values))
	headerBody := 0
	dataSize := 0
	for i, v := range values {
		serials[i] = serialTypeFor(v)
		headerBody += encoding.UvarintLen(serials[i])
		dataSize += serialSize(serials[i])
	}

	// the header length varint counts itself
	hdrLen := encoding.UvarintLen(uint64(headerBody + 1))
	for hdrLen != encoding.UvarintLen(uint64(headerBody+hdrLen)) {
		hdrLen = encoding.UvarintLen(uint64(headerBody + hdrLen))
	}
	headerSize := headerBody + hdrLen

	buf := make([]byte, headerSize+dataSize)
	pos := encoding.PutUvarint(buf, uint64(headerSize))
	for _, st := range serials {
		pos += encoding.PutUvarint(buf[pos:], st)
	}
	for i, v := range values {
		pos += encodeValue(buf[pos:], v, serials[i])
	}
	return buf
}

func encodeValue(buf []byte, v types.Value, st uint64) int {
	switch st {
	case serialNull:
		return 0
	case serialInt8:
		buf[0] = byte(v.Int())
		return 1
	case serialInt16:
		binary.BigEndian.PutUint16(buf, uint16(v.Int()))
		return 2
	case serialInt32:
		binary.BigEndian.PutUint32(buf, uint32(v.Int()))
		return 4
	case serialInt64:
		binary.BigEndian.PutUint64(buf, uint64(v.Int()))
		return 8
	case serialReal:
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Real()))
		return 8
	default:
		n := serialSize(st)
		if st&1 == 0 {
			copy(buf, v.Blob())
		} else {
			copy(buf, v.Text())
		}
		return n
	}
}

func decodePayload(data []byte) ([]types.Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrSerde)
	}
	headerSize, n := encoding.Uvarint(data)
	if headerSize == 0 || int(headerSize) > len(data) {
		return nil, fmt.Errorf("%w: bad payload header", ErrSerde)
	}

	var serials []uint64
	pos := n
	for pos < int(headerSize) {
		st, m := encoding.Uvarint(data[pos:])
		serials = append(serials, st)
		pos += m
	}

	values := make([]types.Value, len(serials))
	pos = int(headerSize)
	for i, st := range serials {
		size := serialSize(st)
		if pos+size > len(data) {
			return nil, fmt.Errorf("%w: payload truncated", ErrSerde)
		}
		values[i] = decodeValue(data[pos:pos+size], st)
		pos += size
	}
	return values, nil
}

func decodeValue(data []byte, st uint64) types.Value {
	switch st {
	case serialNull:
		return types.NewNull()
	case serialInt8:
		return types.NewInt(int64(int8(data[0])))
	case serialInt16:
		return types.NewInt(int64(int16(binary.BigEndian.Uint16(data))))
	case serialInt32:
		return types.NewInt(int64(int32(binary.BigEndian.Uint32(data))))
	case serialInt64:
		return types.NewInt(int64(binary.BigEndian.Uint64(data)))
	case serialReal:
		return types.NewReal(math.Float64frombits(binary.BigEndian.Uint64(data)))
	default:
		if st&1 == 0 {
			return types.NewBlob(data)
		}
		return types.NewText(string(data))
	}
}
