// Package serdes encodes and decodes Rows to and from the byte format
// stored in page records (spec §4.6).
package serdes

import (
	"encoding/binary"

	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// Encode serializes row into: a 2-byte column count, a null bitmap of
// ceil(n/8) bytes (bit i set => column i is NULL), then a packed payload
// where non-null INT is 8 little-endian bytes, BOOLEAN is 1 byte, and
// VARCHAR is a 2-byte length prefix followed by UTF-8 bytes (spec §4.6).
func Encode(row types.Row) []byte {
	n := len(row)
	bitmapLen := (n + 7) / 8

	size := 2 + bitmapLen
	for _, v := range row {
		if v.Null {
			continue
		}
		switch v.Kind {
		case types.INT:
			size += 8
		case types.BOOLEAN:
			size += 1
		case types.VARCHAR:
			size += 2 + len(v.S)
		}
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(n))

	bitmap := buf[2 : 2+bitmapLen]
	off := 2 + bitmapLen
	for i, v := range row {
		if v.Null {
			bitmap[i/8] |= 1 << uint(i%8)
			continue
		}
		switch v.Kind {
		case types.INT:
			binary.LittleEndian.PutUint64(buf[off:off+8], uint64(v.I))
			off += 8
		case types.BOOLEAN:
			if v.B {
				buf[off] = 1
			} else {
				buf[off] = 0
			}
			off += 1
		case types.VARCHAR:
			binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(v.S)))
			off += 2
			copy(buf[off:off+len(v.S)], v.S)
			off += len(v.S)
		}
	}

	return buf
}

// Decode reconstructs a Row from buf, using schema to drive field widths
// and typing. Returns DecodeError if buf is malformed, runs off the end, or
// a VARCHAR length exceeds the column's declared n (spec §4.6).
func Decode(schema *types.Schema, buf []byte) (types.Row, error) {
	if len(buf) < 2 {
		return nil, decodeErr("buffer too short for column count")
	}
	n := int(binary.LittleEndian.Uint16(buf[0:2]))
	if n != len(schema.Columns) {
		return nil, decodeErr("column count %d does not match schema of %d columns", n, len(schema.Columns))
	}

	bitmapLen := (n + 7) / 8
	if len(buf) < 2+bitmapLen {
		return nil, decodeErr("buffer too short for null bitmap")
	}
	bitmap := buf[2 : 2+bitmapLen]
	off := 2 + bitmapLen

	row := make(types.Row, n)
	for i, col := range schema.Columns {
		isNull := bitmap[i/8]&(1<<uint(i%8)) != 0
		if isNull {
			row[i] = types.NullValue(col.Type)
			continue
		}
		switch col.Type {
		case types.INT:
			if off+8 > len(buf) {
				return nil, decodeErr("buffer too short for INT column %q", col.Name)
			}
			row[i] = types.IntValue(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
			off += 8
		case types.BOOLEAN:
			if off+1 > len(buf) {
				return nil, decodeErr("buffer too short for BOOLEAN column %q", col.Name)
			}
			row[i] = types.BoolValue(buf[off] != 0)
			off += 1
		case types.VARCHAR:
			if off+2 > len(buf) {
				return nil, decodeErr("buffer too short for VARCHAR length of column %q", col.Name)
			}
			strLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
			off += 2
			if strLen > col.Length {
				return nil, decodeErr("VARCHAR column %q length %d exceeds declared %d", col.Name, strLen, col.Length)
			}
			if off+strLen > len(buf) {
				return nil, decodeErr("buffer too short for VARCHAR column %q", col.Name)
			}
			row[i] = types.StringValue(string(buf[off : off+strLen]))
			off += strLen
		}
	}

	return row, nil
}

func decodeErr(format string, args ...any) *errs.Error {
	return errs.New(errs.PhaseStorage, errs.KindDecodeError, 0, 0, format, args...)
}
