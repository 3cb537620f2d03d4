package normalize

import (
	"math"
	"math/big"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hyperterse/querygate/core/domain"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

func TestValue_Scalars(t *testing.T) {
	n := New()
	ts := time.Date(2024, 3, 9, 14, 30, 0, 123000000, time.FixedZone("CET", 3600))
	oid, _ := bson.ObjectIDFromHex("507f1f77bcf86cd799439011")
	dec, _ := bson.ParseDecimal128("19.99")
	_, ipNet, _ := net.ParseCIDR("10.0.0.0/8")

	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "widget", "widget"},
		{"int32", int32(42), int64(42)},
		{"safe int64", int64(MaxSafeInteger), int64(MaxSafeInteger)},
		{"max int64", int64(math.MaxInt64), "9223372036854775807"},
		{"min int64", int64(math.MinInt64), "-9223372036854775808"},
		{"max uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"uint8", uint8(7), int64(7)},
		{"float", 1.5, 1.5},
		{"big int", new(big.Int).Lsh(big.NewInt(1), 70), "1180591620717411303424"},
		{"json number", json.Number("12.50"), "12.50"},
		{"time", ts, "2024-03-09T13:30:00.123Z"},
		{"utf8 bytes", []byte("hello"), "hello"},
		{"binary bytes", []byte{0xff, 0x00}, "/wA="},
		{"pg uuid", [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}, "550e8400-e29b-41d4-a716-446655440000"},
		{"inet", netip.MustParsePrefix("192.168.0.0/24"), "192.168.0.0/24"},
		{"ipnet", ipNet, "10.0.0.0/8"},
		{"mac", net.HardwareAddr{0x08, 0x00, 0x2b, 0x01, 0x02, 0x03}, "08:00:2b:01:02:03"},
		{"pg numeric", pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, "123.45"},
		{"pg numeric null", pgtype.Numeric{}, nil},
		{"object id", oid, "507f1f77bcf86cd799439011"},
		{"bson datetime", bson.NewDateTimeFromTime(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), "2024-01-02T00:00:00Z"},
		{"decimal128", dec, "19.99"},
		{"regex", bson.Regex{Pattern: "^a", Options: "i"}, "/^a/i"},
		{"timestamp", bson.Timestamp{T: 10, I: 2}, map[string]any{"t": int64(10), "i": int64(2)}},
		{"typed slice", []string{"a", "b"}, []any{"a", "b"}},
		{"int pointer", func() *int { v := 3; return &v }(), int64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Value(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValue_Nested(t *testing.T) {
	oid, _ := bson.ObjectIDFromHex("507f1f77bcf86cd799439011")
	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "items", Value: bson.A{
			bson.M{"qty": int64(math.MaxInt64), "sku": "A-1"},
			bson.D{{Key: "qty", Value: int32(2)}},
		}},
	}

	got, err := New().Value(doc)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"_id": "507f1f77bcf86cd799439011",
		"items": []any{
			map[string]any{"qty": "9223372036854775807", "sku": "A-1"},
			map[string]any{"qty": int64(2)},
		},
	}, got)
}

func TestValue_Unsupported(t *testing.T) {
	n := New()

	for name, input := range map[string]any{
		"nan":         math.NaN(),
		"inf":         math.Inf(1),
		"struct":      struct{ A int }{A: 1},
		"channel":     make(chan int),
		"int map key": map[int]string{1: "a"},
		"nested nan":  []any{1, math.NaN()},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.Value(input)
			assert.Error(t, err)
		})
	}
}

func TestRows_SerializationFailed(t *testing.T) {
	_, err := New().Rows(domain.EnginePostgreSQL, []map[string]any{{"id": 1, "weird": struct{}{}}})
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindSerializationFailed, gwerrors.KindOf(err))
	assert.Contains(t, err.Error(), `field "weird"`)
}

func TestRows_EmptyIsNotNil(t *testing.T) {
	rows, err := New().Rows(domain.EngineMySQL, nil)
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)

	encoded, err := json.Marshal(domain.QueryResult{Rows: rows})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[]}`, string(encoded))
}

func TestRows_JSONRoundTrip(t *testing.T) {
	raw := []map[string]any{
		{
			"id":      int64(9223372036854775807),
			"name":    "Widget",
			"price":   pgtype.Numeric{Int: big.NewInt(1999), Exp: -2, Valid: true},
			"created": time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			"tags":    []string{"a", "b"},
			"meta":    map[string]any{"depth": int32(3), "ok": true, "none": nil},
		},
		{"id": int64(2), "name": "Gadget", "price": nil, "created": nil, "tags": []string{}, "meta": nil},
	}

	n := New()
	rows, err := n.Rows(domain.EnginePostgreSQL, raw)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", rows[0]["id"])

	encoded, err := json.Marshal(domain.QueryResult{Rows: rows})
	require.NoError(t, err)

	var decoded domain.QueryResult
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(encoded), string(reencoded))

	assert.Equal(t, "9223372036854775807", decoded.Rows[0]["id"])
	assert.Equal(t, "19.99", decoded.Rows[0]["price"])
	assert.Equal(t, "2024-05-01T12:00:00Z", decoded.Rows[0]["created"])

	// normalizing an already-normalized result changes nothing
	again, err := n.Rows(domain.EnginePostgreSQL, rows)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}
