package connectors

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// shellParser reads the literal subset of mongo shell syntax: JSON with
// unquoted keys, single-quoted strings, regex literals and the usual BSON
// constructors. Objects decode to bson.D so key order is kept.
type shellParser struct {
	src string
	pos int
}

func newShellParser(src string) *shellParser {
	return &shellParser{src: src}
}

func (p *shellParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *shellParser) skipSpace() {
	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "//"):
			end := strings.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				p.pos = len(p.src)
			} else {
				p.pos += end + 1
			}
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			end := strings.Index(p.src[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
			} else {
				p.pos += end + 4
			}
		default:
			return
		}
	}
}

func (p *shellParser) eof() bool {
	p.skipSpace()
	return p.pos >= len(p.src)
}

func (p *shellParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *shellParser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *shellParser) expect(c byte) error {
	if !p.consume(c) {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.src[p.pos])
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (p *shellParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !isIdentStart(c) && !(p.pos > start && isDigit(c)) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// parseArgs reads a parenthesised, comma-separated argument list
func (p *shellParser) parseArgs() ([]any, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	args := []any{}
	if p.consume(')') {
		return args, nil
	}
	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		args = append(args, value)
		if p.consume(',') {
			if p.consume(')') {
				return args, nil
			}
			continue
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *shellParser) parseValue() (any, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '/':
		return p.parseRegex()
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseKeywordOrCall()
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected character %q", c)
	}
}

func (p *shellParser) parseObject() (bson.D, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	doc := bson.D{}
	for {
		if p.consume('}') {
			return doc, nil
		}

		var key string
		switch c := p.peek(); {
		case c == '"' || c == '\'':
			s, err := p.parseString()
			if err != nil {
				return nil, err
			}
			key = s
		case isIdentStart(c):
			key = p.ident()
		default:
			return nil, p.errorf("expected object key")
		}

		if err := p.expect(':'); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: key, Value: value})

		if !p.consume(',') {
			if err := p.expect('}'); err != nil {
				return nil, err
			}
			return doc, nil
		}
	}
}

func (p *shellParser) parseArray() (bson.A, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	arr := bson.A{}
	for {
		if p.consume(']') {
			return arr, nil
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)

		if !p.consume(',') {
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			return arr, nil
		}
	}
}

func (p *shellParser) parseString() (string, error) {
	p.skipSpace()
	quote := p.src[p.pos]
	p.pos++

	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", p.errorf("unterminated string")
		case c == '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *shellParser) parseEscape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case 'u', 'x':
		width := 4
		if c == 'x' {
			width = 2
		}
		if p.pos+width > len(p.src) {
			return p.errorf("short \\%c escape", c)
		}
		code, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
		if err != nil {
			return p.errorf("invalid \\%c escape", c)
		}
		p.pos += width
		b.WriteRune(rune(code))
	default:
		// \\, \', \", \/ and unknown escapes yield the character itself
		b.WriteByte(c)
	}
	return nil
}

func (p *shellParser) parseRegex() (bson.Regex, error) {
	p.skipSpace()
	p.pos++ // opening slash

	var pattern strings.Builder
	inClass := false
	for {
		if p.pos >= len(p.src) || p.src[p.pos] == '\n' {
			return bson.Regex{}, p.errorf("unterminated regular expression")
		}
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			if p.src[p.pos+1] == '/' {
				pattern.WriteByte('/')
			} else {
				pattern.WriteString(p.src[p.pos : p.pos+2])
			}
			p.pos += 2
			continue
		}
		p.pos++
		switch {
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			flags, err := p.regexFlags()
			if err != nil {
				return bson.Regex{}, err
			}
			return bson.Regex{Pattern: pattern.String(), Options: flags}, nil
		}
		pattern.WriteByte(c)
	}
}

func (p *shellParser) regexFlags() (string, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
	}
	return normalizeRegexFlags(p.src[start:p.pos])
}

// normalizeRegexFlags drops the JS-only g flag and sorts the rest, as BSON requires
func normalizeRegexFlags(flags string) (string, error) {
	kept := make([]string, 0, len(flags))
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'x', 'u':
			kept = append(kept, string(f))
		case 'g':
		default:
			return "", fmt.Errorf("unsupported regular expression flag %q", f)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, ""), nil
}

func (p *shellParser) parseNumber() (any, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isDigit(c) || c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	return parseNumberLiteral(p.src[start:p.pos])
}

// parseNumberLiteral keeps integers integral: int32 when it fits, else int64
func parseNumberLiteral(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return f, nil
}

func (p *shellParser) parseKeywordOrCall() (any, error) {
	start := p.pos
	name := p.ident()
	switch name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "undefined":
		return nil, nil
	case "new":
		ctor := p.ident()
		if ctor == "" {
			return nil, p.errorf("expected constructor after new")
		}
		return p.parseConstructor(ctor)
	}
	if p.peek() != '(' {
		p.pos = start
		return nil, p.errorf("unknown identifier %q", name)
	}
	return p.parseConstructor(name)
}

func (p *shellParser) parseConstructor(name string) (any, error) {
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	value, err := construct(name, args)
	if err != nil {
		return nil, p.errorf("%s(): %v", name, err)
	}
	return value, nil
}

func construct(name string, args []any) (any, error) {
	switch name {
	case "ObjectId", "ObjectID":
		if len(args) == 0 {
			return bson.NewObjectID(), nil
		}
		hex, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return bson.ObjectIDFromHex(hex)

	case "ISODate", "Date":
		if len(args) == 0 {
			return bson.NewDateTimeFromTime(time.Now()), nil
		}
		switch v := args[0].(type) {
		case string:
			t, err := parseShellDate(v)
			if err != nil {
				return nil, err
			}
			return bson.NewDateTimeFromTime(t), nil
		case int32, int64, float64:
			ms, err := integralArg(v)
			if err != nil {
				return nil, err
			}
			return bson.DateTime(ms), nil
		default:
			return nil, fmt.Errorf("expected a date string or epoch milliseconds")
		}

	case "NumberLong":
		return int64Arg(args)

	case "NumberInt":
		n, err := int64Arg(args)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows int32", n)
		}
		return int32(n), nil

	case "NumberDecimal", "Decimal128":
		if len(args) != 1 {
			return nil, fmt.Errorf("expected one argument")
		}
		return bson.ParseDecimal128(fmt.Sprint(args[0]))

	case "UUID":
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return bson.Binary{Subtype: bson.TypeBinaryUUID, Data: id[:]}, nil

	case "BinData":
		if len(args) != 2 {
			return nil, fmt.Errorf("expected subtype and base64 payload")
		}
		subtype, err := integralArg(args[0])
		if err != nil || subtype < 0 || subtype > 0xff {
			return nil, fmt.Errorf("invalid subtype")
		}
		payload, err := stringArg(args, 1)
		if err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, err
		}
		return bson.Binary{Subtype: byte(subtype), Data: data}, nil

	case "Timestamp":
		if len(args) != 2 {
			return nil, fmt.Errorf("expected seconds and increment")
		}
		t, err := uint32Arg(args[0])
		if err != nil {
			return nil, fmt.Errorf("timestamp seconds: %w", err)
		}
		i, err := uint32Arg(args[1])
		if err != nil {
			return nil, fmt.Errorf("timestamp increment: %w", err)
		}
		return bson.Timestamp{T: t, I: i}, nil

	case "RegExp":
		pattern, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		flags := ""
		if len(args) > 1 {
			if flags, err = stringArg(args, 1); err != nil {
				return nil, err
			}
		}
		options, err := normalizeRegexFlags(flags)
		if err != nil {
			return nil, err
		}
		return bson.Regex{Pattern: pattern, Options: options}, nil
	}
	return nil, fmt.Errorf("unsupported constructor")
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i+1)
	}
	return s, nil
}

func integralArg(v any) (int64, error) {
	switch n := v.(type) {
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		// 1<<63 is exact as a float64; MaxInt64 is not
		if n < -(1<<63) || n >= 1<<63 {
			return 0, fmt.Errorf("%v is out of the 64-bit integer range", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func uint32Arg(v any) (uint32, error) {
	n, err := integralArg(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("%d is out of the unsigned 32-bit range", n)
	}
	return uint32(n), nil
}

func int64Arg(args []any) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one argument")
	}
	if s, ok := args[0].(string); ok {
		return strconv.ParseInt(s, 10, 64)
	}
	return integralArg(args[0])
}

var shellDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseShellDate accepts the ISODate forms; strings without a zone are UTC
func parseShellDate(s string) (time.Time, error) {
	for _, layout := range shellDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
