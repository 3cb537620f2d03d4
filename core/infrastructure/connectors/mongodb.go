package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
)

// MongoDBAdapter executes parsed shell commands against MongoDB
type MongoDBAdapter struct {
	log logging.Logger
}

// NewMongoDBAdapter creates the document-store engine adapter
func NewMongoDBAdapter() *MongoDBAdapter {
	return &MongoDBAdapter{log: logging.New("connector:mongodb")}
}

func (a *MongoDBAdapter) Name() string {
	return "mongodb"
}

// Prepare enforces the db. prefix and parses the command before any connection exists
func (a *MongoDBAdapter) Prepare(queryText string) (interfaces.Statement, error) {
	return ParseMongoCommand(queryText)
}

func (a *MongoDBAdapter) Connect(ctx context.Context, d domain.DataSourceDescriptor) (interfaces.Connection, error) {
	uri, err := BuildMongoURI(d)
	if err != nil {
		return nil, err
	}

	timeout := DefaultConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}

	a.log.Debugf("Opening MongoDB connection to %s", d.Target())
	opts := mongoOptions.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, connectionFailed(domain.EngineMongoDB, "failed to connect to mongodb", err)
	}

	// mongo.Connect does not dial; the ping does
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = disconnect(client)
		return nil, connectionFailed(domain.EngineMongoDB, "failed to ping mongodb", err)
	}

	return &mongoConnection{
		client: client,
		db:     client.Database(MongoDatabaseName(d, uri)),
		log:    a.log,
	}, nil
}

func disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

type mongoConnection struct {
	client *mongo.Client
	db     *mongo.Database
	log    logging.Logger
}

func (c *mongoConnection) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return connectionFailed(domain.EngineMongoDB, "failed to ping mongodb", err)
	}
	return nil
}

func (c *mongoConnection) Query(ctx context.Context, stmt interfaces.Statement) ([]map[string]any, error) {
	cmd, ok := stmt.(*MongoCommand)
	if !ok {
		parsed, err := ParseMongoCommand(stmt.String())
		if err != nil {
			return nil, err
		}
		cmd = parsed
	}

	rows, err := c.run(ctx, cmd)
	if err != nil {
		return nil, queryFailed(domain.EngineMongoDB, fmt.Sprintf("%s on %s failed", cmd.Operation, cmd.Collection), err)
	}
	return rows, nil
}

func (c *mongoConnection) run(ctx context.Context, cmd *MongoCommand) ([]map[string]any, error) {
	coll := c.db.Collection(cmd.Collection)
	if cmd.MaxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.MaxTime)
		defer cancel()
	}

	switch cmd.Operation {
	case OpFind:
		cursor, err := coll.Find(ctx, cmd.Filter, findOptions(cmd))
		if err != nil {
			return nil, err
		}
		return drain(ctx, cursor)

	case OpFindOne:
		opts := mongoOptions.FindOne()
		if cmd.Projection != nil {
			opts.SetProjection(cmd.Projection)
		}
		var doc bson.M
		err := coll.FindOne(ctx, cmd.Filter, opts).Decode(&doc)
		return singleDocumentRows(doc, err)

	case OpAggregate:
		cursor, err := coll.Aggregate(ctx, cmd.Pipeline, aggregateOptions(cmd))
		if err != nil {
			return nil, err
		}
		return drain(ctx, cursor)

	case OpCountDocuments:
		n, err := coll.CountDocuments(ctx, cmd.Filter)
		if err != nil {
			return nil, err
		}
		return countRows(n), nil

	case OpEstimatedDocumentCount:
		n, err := coll.EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, err
		}
		return countRows(n), nil

	case OpDistinct:
		var values []any
		if err := coll.Distinct(ctx, cmd.Field, cmd.Filter).Decode(&values); err != nil {
			return nil, err
		}
		return distinctRows(values), nil
	}

	return nil, fmt.Errorf("operation %q is not supported", cmd.Operation)
}

func findOptions(cmd *MongoCommand) *mongoOptions.FindOptionsBuilder {
	opts := mongoOptions.Find()
	if cmd.Projection != nil {
		opts.SetProjection(cmd.Projection)
	}
	if cmd.Sort != nil {
		opts.SetSort(cmd.Sort)
	}
	if cmd.Limit != nil {
		opts.SetLimit(*cmd.Limit)
	}
	if cmd.Skip != nil {
		opts.SetSkip(*cmd.Skip)
	}
	return opts
}

func aggregateOptions(cmd *MongoCommand) *mongoOptions.AggregateOptionsBuilder {
	opts := mongoOptions.Aggregate()
	if cmd.AllowDiskUse != nil {
		opts.SetAllowDiskUse(*cmd.AllowDiskUse)
	}
	if cmd.BatchSize != nil {
		opts.SetBatchSize(*cmd.BatchSize)
	}
	if cmd.Comment != nil {
		opts.SetComment(cmd.Comment)
	}
	if cmd.Hint != nil {
		opts.SetHint(cmd.Hint)
	}
	if cmd.Let != nil {
		opts.SetLet(cmd.Let)
	}
	return opts
}

// singleDocumentRows shapes a findOne outcome: one document becomes a
// one-element result and no match an empty one
func singleDocumentRows(doc bson.M, err error) ([]map[string]any, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []map[string]any{map[string]any(doc)}, nil
}

func countRows(n int64) []map[string]any {
	return []map[string]any{{"count": n}}
}

func distinctRows(values []any) []map[string]any {
	rows := make([]map[string]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, map[string]any{"value": v})
	}
	return rows
}

func drain(ctx context.Context, cursor *mongo.Cursor) ([]map[string]any, error) {
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return documentRows(docs), nil
}

func documentRows(docs []bson.M) []map[string]any {
	rows := make([]map[string]any, len(docs))
	for i, doc := range docs {
		rows[i] = map[string]any(doc)
	}
	return rows
}

// Close disconnects the client under its own deadline
func (c *mongoConnection) Close() error {
	c.log.Debugf("Closing MongoDB connection")
	return disconnect(c.client)
}
