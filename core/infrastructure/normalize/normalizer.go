// Package normalize converts engine-native result values into JSON-safe ones.
package normalize

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/netip"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hyperterse/querygate/core/domain"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// MaxSafeInteger is the largest integer a float64 (and therefore a JSON
// number in most decoders) represents exactly.
const MaxSafeInteger = 1<<53 - 1

// TimeLayout is the canonical textual form of every date/time value:
// RFC 3339 in UTC with nanoseconds when present.
const TimeLayout = time.RFC3339Nano

// Normalizer walks result rows and rewrites every value into one of: nil,
// bool, string, int64 (within ±MaxSafeInteger), float64, map[string]any or []any.
type Normalizer struct{}

// New creates a Normalizer
func New() *Normalizer {
	return &Normalizer{}
}

// Rows normalizes every record. The returned slice is never nil.
func (n *Normalizer) Rows(engine domain.EngineType, rows []map[string]any) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(rows))
	for i, row := range rows {
		record := make(domain.Record, len(row))
		for key, value := range row {
			normalized, err := n.Value(value)
			if err != nil {
				return nil, gwerrors.New(gwerrors.KindSerializationFailed, string(engine),
					fmt.Sprintf("row %d, field %q", i, key), err)
			}
			record[key] = normalized
		}
		out = append(out, record)
	}
	return out, nil
}

// Value normalizes a single value
func (n *Normalizer) Value(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil

	case int:
		return integer(int64(val)), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return integer(val), nil
	case uint:
		return unsigned(uint64(val)), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return unsigned(val), nil
	case float32:
		return float(float64(val))
	case float64:
		return float(val)
	case *big.Int:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case *big.Float:
		if val == nil {
			return nil, nil
		}
		return val.Text('f', -1), nil
	case json.Number:
		return val.String(), nil

	case time.Time:
		return formatTime(val), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return formatTime(*val), nil
	case time.Duration:
		return val.String(), nil

	case []byte:
		return bytesValue(val), nil
	case [16]byte:
		return uuid.UUID(val).String(), nil
	case uuid.UUID:
		return val.String(), nil

	case netip.Prefix:
		return val.String(), nil
	case netip.Addr:
		return val.String(), nil
	case net.IP:
		return val.String(), nil
	case *net.IPNet:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case net.HardwareAddr:
		return val.String(), nil

	case map[string]any:
		return n.mapValue(val)
	case bson.M:
		return n.mapValue(val)
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			nv, err := n.Value(e.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			out[e.Key] = nv
		}
		return out, nil
	case []any:
		return n.sliceValue(val)
	case bson.A:
		return n.sliceValue(val)

	case bson.ObjectID:
		return val.Hex(), nil
	case bson.DateTime:
		return formatTime(val.Time()), nil
	case bson.Decimal128:
		return val.String(), nil
	case bson.Binary:
		if val.Subtype == bson.TypeBinaryUUID && len(val.Data) == 16 {
			return uuid.UUID(val.Data).String(), nil
		}
		return base64.StdEncoding.EncodeToString(val.Data), nil
	case bson.Regex:
		return "/" + val.Pattern + "/" + val.Options, nil
	case bson.Timestamp:
		return map[string]any{"t": int64(val.T), "i": int64(val.I)}, nil
	case bson.Null, bson.Undefined:
		return nil, nil
	case bson.Symbol:
		return string(val), nil
	case bson.JavaScript:
		return string(val), nil
	case bson.MinKey:
		return map[string]any{"$minKey": int64(1)}, nil
	case bson.MaxKey:
		return map[string]any{"$maxKey": int64(1)}, nil

	case driver.Valuer:
		// pgtype values (Numeric, Interval, Time, ...) expose a driver value
		dv, err := val.Value()
		if err != nil {
			return nil, fmt.Errorf("%T: %w", v, err)
		}
		if _, again := dv.(driver.Valuer); again {
			return nil, unsupported(v)
		}
		return n.Value(dv)
	}

	return n.reflectValue(v)
}

// reflectValue covers typed slices, arrays, maps and pointers the type
// switch does not name, such as []string or []int32 from pgx arrays.
func (n *Normalizer) reflectValue(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return n.Value(rv.Elem().Interface())

	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			nv, err := n.Value(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, unsupported(v)
		}
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			nv, err := n.Value(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = nv
		}
		return out, nil

	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsigned(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return float(rv.Float())
	}

	return nil, unsupported(v)
}

func (n *Normalizer) mapValue(m map[string]any) (any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		nv, err := n.Value(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = nv
	}
	return out, nil
}

func (n *Normalizer) sliceValue(s []any) (any, error) {
	out := make([]any, len(s))
	for i, value := range s {
		nv, err := n.Value(value)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = nv
	}
	return out, nil
}

// integer keeps safe integers numeric and turns the rest into decimal strings
func integer(v int64) any {
	if v > MaxSafeInteger || v < -MaxSafeInteger {
		return fmt.Sprintf("%d", v)
	}
	return v
}

func unsigned(v uint64) any {
	if v > MaxSafeInteger {
		return fmt.Sprintf("%d", v)
	}
	return int64(v)
}

func float(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("non-finite float %v has no JSON form", v)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func bytesValue(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func unsupported(v any) error {
	return fmt.Errorf("unsupported value type %T", v)
}
