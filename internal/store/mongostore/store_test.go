package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/JonMunkholm/restoimport/internal/core"
)

func docs(n int) []bson.D {
	out := make([]bson.D, n)
	for i := range out {
		out[i] = bson.D{{Key: "n", Value: i}}
	}
	return out
}

func TestInsertMany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("all inserted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))
		s := New(mt.DB, Options{OperationTimeout: time.Second})

		n, err := s.InsertMany(context.Background(), "usuarios", docs(3))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	mt.Run("duplicate key stops the batch", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   1,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))
		s := New(mt.DB, Options{})

		n, err := s.InsertMany(context.Background(), "usuarios", docs(3))
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Contains(t, err.Error(), "usuarios")
	})

	mt.Run("command failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))
		s := New(mt.DB, Options{})

		n, err := s.InsertMany(context.Background(), "ordenes", docs(2))
		require.Error(t, err)
		assert.Zero(t, n)
	})

	mt.Run("empty batch", func(mt *mtest.T) {
		s := New(mt.DB, Options{})
		n, err := s.InsertMany(context.Background(), "ordenes", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestEnsureIndex(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	spec := core.IndexSpec{
		Name:   "correo_unique",
		Keys:   []core.IndexKey{{Field: "correo", Order: core.Ascending}},
		Unique: true,
	}

	mt.Run("created", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.DB, Options{})
		require.NoError(t, s.EnsureIndex(context.Background(), "usuarios", spec))
	})

	mt.Run("conflicting definition", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Name:    "IndexOptionsConflict",
			Message: "Index with name: correo_unique already exists with different options",
		}))
		s := New(mt.DB, Options{})

		err := s.EnsureIndex(context.Background(), "usuarios", spec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "correo_unique")
	})
}

func TestIndexKeys(t *testing.T) {
	got := indexKeys([]core.IndexKey{
		{Field: "ciudad", Order: core.Ascending},
		{Field: "calificacion_promedio", Order: core.Descending},
		{Field: "nombre", Order: core.Text},
	})
	assert.Equal(t, bson.D{
		{Key: "ciudad", Value: 1},
		{Key: "calificacion_promedio", Value: -1},
		{Key: "nombre", Value: "text"},
	}, got)
}

func TestLedger(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("record", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))
		s := New(mt.DB, Options{})

		err := s.RecordRun(context.Background(), core.RunRecord{
			ID:        "run-1",
			StartedAt: started,
			Status:    core.RunSucceeded,
			Stages:    []core.StageReport{{Kind: core.KindUsers, Collection: "usuarios", Records: 2}},
		})
		require.NoError(t, err)
	})

	mt.Run("list", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + DefaultRunsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "run-2"},
				{Key: "started_at", Value: started.Add(time.Hour)},
				{Key: "status", Value: "failed"},
				{Key: "stages", Value: bson.A{}},
				{Key: "error_code", Value: "ETL003"},
			},
			bson.D{
				{Key: "_id", Value: "run-1"},
				{Key: "started_at", Value: started},
				{Key: "status", Value: "succeeded"},
				{Key: "stages", Value: bson.A{
					bson.D{{Key: "kind", Value: "users"}, {Key: "collection", Value: "usuarios"}, {Key: "records", Value: 2}},
				}},
				{Key: "indexes", Value: 15},
			},
		))
		s := New(mt.DB, Options{})

		runs, err := s.ListRuns(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, core.RunFailed, runs[0].Status)
		assert.Equal(t, "ETL003", runs[0].ErrorCode)
		assert.Equal(t, core.KindUsers, runs[1].Stages[0].Kind)
		assert.Equal(t, 2, runs[1].Stages[0].Records)
		assert.True(t, started.Equal(runs[1].StartedAt))
	})

	mt.Run("drop collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.DB, Options{})
		require.NoError(t, s.DropCollection(context.Background(), "usuarios"))
	})

	mt.Run("ping", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := New(mt.DB, Options{})
		require.NoError(t, s.Ping(context.Background()))
		require.NoError(t, s.Close(context.Background()))
	})
}
