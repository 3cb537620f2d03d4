package connectors

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hyperterse/querygate/core/domain"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// CommandPrefix every document-store query must start with (case-insensitive)
const CommandPrefix = "db."

// MongoOperation is one read operation of the accepted shell grammar
type MongoOperation string

const (
	OpFind                   MongoOperation = "find"
	OpFindOne                MongoOperation = "findOne"
	OpAggregate              MongoOperation = "aggregate"
	OpCountDocuments         MongoOperation = "countDocuments"
	OpEstimatedDocumentCount MongoOperation = "estimatedDocumentCount"
	OpDistinct               MongoOperation = "distinct"
)

var operationNames = map[string]MongoOperation{
	"find":                   OpFind,
	"findOne":                OpFindOne,
	"aggregate":              OpAggregate,
	"countDocuments":         OpCountDocuments,
	"count":                  OpCountDocuments,
	"estimatedDocumentCount": OpEstimatedDocumentCount,
	"distinct":               OpDistinct,
}

// MongoCommand is the parsed form of db.<collection>.<op>(...)[.<modifier>(...)]*.
// It is also the Statement the document adapter executes.
type MongoCommand struct {
	Collection string
	Operation  MongoOperation
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Limit      *int64
	Skip       *int64
	Pipeline   bson.A
	Field      string

	// aggregate and estimatedDocumentCount options
	AllowDiskUse *bool
	BatchSize    *int32
	Comment      any
	Hint         any
	Let          bson.D
	MaxTime      time.Duration

	text string
}

// forbiddenOperators write to collections or run server-side JavaScript
var forbiddenOperators = map[string]bool{
	"$out":         true,
	"$merge":       true,
	"$where":       true,
	"$function":    true,
	"$accumulator": true,
}

func (c *MongoCommand) String() string {
	return c.text
}

func unsupportedForm(message string, err error) error {
	return gwerrors.New(gwerrors.KindUnsupportedQueryForm, string(domain.EngineMongoDB), message, err)
}

// HasCommandPrefix reports whether text starts with db. after trimming, ignoring case
func HasCommandPrefix(text string) bool {
	trimmed := strings.TrimSpace(text)
	return len(trimmed) >= len(CommandPrefix) && strings.EqualFold(trimmed[:len(CommandPrefix)], CommandPrefix)
}

// ParseMongoCommand checks the db. prefix and parses the command. It never
// performs I/O; every rejection is UnsupportedQueryForm.
func ParseMongoCommand(text string) (*MongoCommand, error) {
	if !HasCommandPrefix(text) {
		return nil, unsupportedForm(fmt.Sprintf("query must start with %q", CommandPrefix), nil)
	}

	trimmed := strings.TrimSpace(text)
	body := strings.TrimRight(strings.TrimSpace(trimmed[len(CommandPrefix):]), "; \t\r\n")

	cmd, err := parseCommandBody(body)
	if err != nil {
		return nil, unsupportedForm("unsupported document command", err)
	}
	for _, part := range []any{cmd.Filter, cmd.Projection, cmd.Sort, cmd.Pipeline, cmd.Let} {
		if op := forbiddenOperator(part); op != "" {
			return nil, unsupportedForm(fmt.Sprintf("operator %s is not allowed", op), nil)
		}
	}
	cmd.text = trimmed
	return cmd, nil
}

// forbiddenOperator returns the first key of forbiddenOperators found at any
// depth of v, or ""
func forbiddenOperator(v any) string {
	switch x := v.(type) {
	case bson.D:
		for _, e := range x {
			if forbiddenOperators[e.Key] {
				return e.Key
			}
			if op := forbiddenOperator(e.Value); op != "" {
				return op
			}
		}
	case bson.A:
		for _, item := range x {
			if op := forbiddenOperator(item); op != "" {
				return op
			}
		}
	}
	return ""
}

func parseCommandBody(body string) (*MongoCommand, error) {
	p := newShellParser(body)
	cmd := &MongoCommand{}

	opName, err := p.collectionAndOperation(cmd)
	if err != nil {
		return nil, err
	}
	op, ok := operationNames[opName]
	if !ok {
		return nil, fmt.Errorf("operation %q is not supported", opName)
	}
	cmd.Operation = op

	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	if err := cmd.applyArgs(opName, args); err != nil {
		return nil, err
	}

	for !p.eof() {
		if err := p.expect('.'); err != nil {
			return nil, err
		}
		modifier := p.ident()
		if modifier == "" {
			return nil, p.errorf("expected modifier name")
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if err := cmd.applyModifier(modifier, args); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// collectionAndOperation reads either getCollection("name").op or
// a.dotted.name.op, where op is the first segment followed by "(".
func (p *shellParser) collectionAndOperation(cmd *MongoCommand) (string, error) {
	first := p.ident()
	if first == "getCollection" && p.peek() == '(' {
		args, err := p.parseArgs()
		if err != nil {
			return "", err
		}
		name, err := stringArg(args, 0)
		if err != nil || len(args) != 1 {
			return "", fmt.Errorf("getCollection expects one collection name")
		}
		cmd.Collection = name
		if err := p.expect('.'); err != nil {
			return "", err
		}
		op := p.ident()
		if op == "" || p.peek() != '(' {
			return "", p.errorf("expected an operation call")
		}
		return op, nil
	}

	segments := []string{}
	segment := first
	for {
		if segment == "" {
			return "", p.errorf("expected collection name")
		}
		if p.peek() == '(' {
			break
		}
		segments = append(segments, segment)
		if err := p.expect('.'); err != nil {
			return "", err
		}
		segment = p.ident()
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("database-level command %q is not supported", segment)
	}
	cmd.Collection = strings.Join(segments, ".")
	return segment, nil
}

func (c *MongoCommand) applyArgs(opName string, args []any) error {
	switch c.Operation {
	case OpFind, OpFindOne:
		if len(args) > 2 {
			return fmt.Errorf("%s accepts at most a filter and a projection", opName)
		}
		var err error
		if c.Filter, err = documentArg(args, 0, "filter"); err != nil {
			return err
		}
		if c.Projection, err = documentArg(args, 1, "projection"); err != nil {
			return err
		}

	case OpAggregate:
		pipeline, opts, err := pipelineArg(args)
		if err != nil {
			return err
		}
		c.Pipeline = pipeline
		if err := c.applyAggregateOptions(opts); err != nil {
			return err
		}

	case OpCountDocuments:
		if len(args) > 1 {
			return fmt.Errorf("%s accepts only a filter", opName)
		}
		var err error
		if c.Filter, err = documentArg(args, 0, "filter"); err != nil {
			return err
		}

	case OpEstimatedDocumentCount:
		if len(args) > 1 {
			return fmt.Errorf("estimatedDocumentCount accepts only options")
		}
		opts, err := documentArg(args, 0, "options")
		if err != nil {
			return err
		}
		for _, e := range opts {
			if e.Key != "maxTimeMS" {
				return fmt.Errorf("estimatedDocumentCount option %q is not supported", e.Key)
			}
			if c.MaxTime, err = maxTimeArg(e.Value); err != nil {
				return err
			}
		}

	case OpDistinct:
		field, err := stringArg(args, 0)
		if err != nil {
			return fmt.Errorf("distinct expects a field name: %w", err)
		}
		if len(args) > 2 {
			return fmt.Errorf("distinct accepts a field name and a filter")
		}
		c.Field = field
		if c.Filter, err = documentArg(args, 1, "filter"); err != nil {
			return err
		}
	}

	if c.Filter == nil {
		c.Filter = bson.D{}
	}
	return nil
}

func (c *MongoCommand) applyModifier(name string, args []any) error {
	switch name {
	case "toArray", "pretty":
		if len(args) != 0 {
			return fmt.Errorf("%s takes no arguments", name)
		}
		if c.Operation != OpFind && c.Operation != OpAggregate {
			return fmt.Errorf("%s is only valid after find or aggregate", name)
		}
		return nil
	}

	if c.Operation != OpFind {
		return fmt.Errorf("modifier %s is only valid after find", name)
	}

	switch name {
	case "sort":
		doc, err := documentArg(args, 0, "sort")
		if err != nil || doc == nil || len(args) != 1 {
			return fmt.Errorf("sort expects one document")
		}
		c.Sort = doc
	case "project", "projection":
		doc, err := documentArg(args, 0, "projection")
		if err != nil || doc == nil || len(args) != 1 {
			return fmt.Errorf("%s expects one document", name)
		}
		c.Projection = doc
	case "limit", "skip":
		if len(args) != 1 {
			return fmt.Errorf("%s expects one number", name)
		}
		n, err := integralArg(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%s expects a non-negative integer", name)
		}
		if name == "limit" {
			c.Limit = &n
		} else {
			c.Skip = &n
		}
	case "count":
		if len(args) != 0 {
			return fmt.Errorf("count takes no arguments")
		}
		c.Operation = OpCountDocuments
	default:
		return fmt.Errorf("modifier %q is not supported", name)
	}
	return nil
}

func documentArg(args []any, i int, what string) (bson.D, error) {
	if i >= len(args) || args[i] == nil {
		return nil, nil
	}
	doc, ok := args[i].(bson.D)
	if !ok {
		return nil, fmt.Errorf("%s must be a document, got %T", what, args[i])
	}
	return doc, nil
}

// pipelineArg accepts aggregate([stage, ...], options) as well as
// aggregate(stage, ...). Only the array form can carry options.
func pipelineArg(args []any) (bson.A, bson.D, error) {
	if len(args) == 0 {
		return bson.A{}, nil, nil
	}
	if arr, ok := args[0].(bson.A); ok {
		if len(args) > 2 {
			return nil, nil, fmt.Errorf("aggregate accepts a pipeline and options")
		}
		for _, stage := range arr {
			if _, ok := stage.(bson.D); !ok {
				return nil, nil, fmt.Errorf("pipeline stages must be documents")
			}
		}
		opts, err := documentArg(args, 1, "aggregate options")
		if err != nil {
			return nil, nil, err
		}
		return arr, opts, nil
	}
	pipeline := make(bson.A, 0, len(args))
	for _, stage := range args {
		if _, ok := stage.(bson.D); !ok {
			return nil, nil, fmt.Errorf("pipeline stages must be documents")
		}
		pipeline = append(pipeline, stage)
	}
	return pipeline, nil, nil
}

// applyAggregateOptions maps the shell's aggregate options onto the command.
// Unknown options are rejected rather than ignored.
func (c *MongoCommand) applyAggregateOptions(opts bson.D) error {
	for _, e := range opts {
		switch e.Key {
		case "allowDiskUse":
			b, ok := e.Value.(bool)
			if !ok {
				return fmt.Errorf("allowDiskUse must be a boolean")
			}
			c.AllowDiskUse = &b
		case "batchSize":
			n, err := integralArg(e.Value)
			if err != nil || n < 0 || n > math.MaxInt32 {
				return fmt.Errorf("batchSize must be a non-negative 32-bit integer")
			}
			size := int32(n)
			c.BatchSize = &size
		case "comment":
			c.Comment = e.Value
		case "hint":
			switch e.Value.(type) {
			case string, bson.D:
				c.Hint = e.Value
			default:
				return fmt.Errorf("hint must be an index name or key document")
			}
		case "let":
			doc, ok := e.Value.(bson.D)
			if !ok {
				return fmt.Errorf("let must be a document")
			}
			c.Let = doc
		case "maxTimeMS":
			var err error
			if c.MaxTime, err = maxTimeArg(e.Value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("aggregate option %q is not supported", e.Key)
		}
	}
	return nil
}

func maxTimeArg(v any) (time.Duration, error) {
	ms, err := integralArg(v)
	if err != nil || ms <= 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, fmt.Errorf("maxTimeMS must be a positive integer")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
