package connectors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestSingleDocumentRows(t *testing.T) {
	rows, err := singleDocumentRows(bson.M{"_id": int32(1), "name": "ada"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"_id": int32(1), "name": "ada"}}, rows)

	rows, err = singleDocumentRows(nil, mongo.ErrNoDocuments)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	boom := errors.New("server selection timeout")
	_, err = singleDocumentRows(nil, boom)
	assert.ErrorIs(t, err, boom)
}

func TestCountRows(t *testing.T) {
	assert.Equal(t, []map[string]any{{"count": int64(42)}}, countRows(42))
	assert.Equal(t, []map[string]any{{"count": int64(0)}}, countRows(0))
}

func TestDistinctRows(t *testing.T) {
	assert.Equal(t, []map[string]any{{"value": "DE"}, {"value": "FR"}, {"value": nil}},
		distinctRows([]any{"DE", "FR", nil}))

	rows := distinctRows(nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestDocumentRows(t *testing.T) {
	rows := documentRows([]bson.M{{"a": int32(1)}, {"a": int32(2)}})
	assert.Equal(t, []map[string]any{{"a": int32(1)}, {"a": int32(2)}}, rows)

	rows = documentRows(nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestAggregateOptions(t *testing.T) {
	cmd, err := ParseMongoCommand(`db.sales.aggregate([], { allowDiskUse: true, batchSize: 10, comment: "c", hint: "region_1", let: { x: 1 } })`)
	require.NoError(t, err)

	var opts mongoOptions.AggregateOptions
	for _, set := range aggregateOptions(cmd).List() {
		require.NoError(t, set(&opts))
	}
	require.NotNil(t, opts.AllowDiskUse)
	assert.True(t, *opts.AllowDiskUse)
	require.NotNil(t, opts.BatchSize)
	assert.Equal(t, int32(10), *opts.BatchSize)
	assert.Equal(t, "c", opts.Comment)
	assert.Equal(t, "region_1", opts.Hint)
	assert.Equal(t, bson.D{{Key: "x", Value: int32(1)}}, opts.Let)
}

func TestFindOptions(t *testing.T) {
	cmd, err := ParseMongoCommand(`db.users.find({}, { name: 1 }).sort({ name: -1 }).skip(5).limit(10)`)
	require.NoError(t, err)

	var opts mongoOptions.FindOptions
	for _, set := range findOptions(cmd).List() {
		require.NoError(t, set(&opts))
	}
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(10), *opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(5), *opts.Skip)
	assert.Equal(t, bson.D{{Key: "name", Value: int32(-1)}}, opts.Sort)
	assert.Equal(t, bson.D{{Key: "name", Value: int32(1)}}, opts.Projection)
}
