package serdes

import (
	"testing"

	"github.com/YilianFengyue/moonsql/pkg/types"
)

func schema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.INT},
		{Name: "name", Type: types.VARCHAR, Length: 32},
		{Name: "active", Type: types.BOOLEAN},
	}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	row := types.Row{types.IntValue(42), types.StringValue("alice"), types.BoolValue(true)}
	buf := Encode(row)
	got, err := Decode(schema(), buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(row) {
		t.Fatalf("row length mismatch: got %d, want %d", len(got), len(row))
	}
	for i := range row {
		if !got[i].Equal(row[i]) {
			t.Fatalf("column %d: got %v, want %v", i, got[i], row[i])
		}
	}
}

func TestEncodeDecodeWithNulls(t *testing.T) {
	row := types.Row{
		types.NullValue(types.INT),
		types.StringValue("bob"),
		types.NullValue(types.BOOLEAN),
	}
	buf := Encode(row)
	got, err := Decode(schema(), buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got[0].Null || !got[2].Null {
		t.Fatalf("null columns did not round-trip: %v", got)
	}
	if got[1].S != "bob" {
		t.Fatalf("non-null column corrupted: %v", got[1])
	}
}

func TestDecodeRejectsColumnCountMismatch(t *testing.T) {
	row := types.Row{types.IntValue(1), types.StringValue("x"), types.BoolValue(false)}
	buf := Encode(row)
	badSchema := &types.Schema{Columns: schema().Columns[:2]}
	if _, err := Decode(badSchema, buf); err == nil {
		t.Fatal("expected column-count mismatch to be rejected")
	}
}

func TestDecodeRejectsVarcharOverflow(t *testing.T) {
	row := types.Row{types.IntValue(1), types.StringValue("this name is far too long"), types.BoolValue(false)}
	buf := Encode(row)
	tightSchema := &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.INT},
		{Name: "name", Type: types.VARCHAR, Length: 4},
		{Name: "active", Type: types.BOOLEAN},
	}}
	if _, err := Decode(tightSchema, buf); err == nil {
		t.Fatal("expected VARCHAR length overflow to be rejected")
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	row := types.Row{types.IntValue(1), types.StringValue("x"), types.BoolValue(false)}
	buf := Encode(row)
	if _, err := Decode(schema(), buf[:len(buf)-2]); err == nil {
		t.Fatal("expected truncated buffer to be rejected")
	}
}

func TestEmptyStringRoundTrips(t *testing.T) {
	row := types.Row{types.IntValue(0), types.StringValue(""), types.BoolValue(false)}
	buf := Encode(row)
	got, err := Decode(schema(), buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got[1].S != "" {
		t.Fatalf("expected empty string, got %q", got[1].S)
	}
}
