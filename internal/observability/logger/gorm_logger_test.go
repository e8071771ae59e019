package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	tests := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "invoices" WHERE id = $1`, "SELECT", "invoices"},
		{"INSERT INTO `quotation_items` (`id`) VALUES (?)", "INSERT", "quotation_items"},
		{`UPDATE "quotations" SET "status"='expired'`, "UPDATE", "quotations"},
		{`DELETE FROM invoice_items WHERE invoice_id = 1`, "DELETE", "invoice_items"},
		{`PRAGMA foreign_keys = ON`, "UNKNOWN", ""},
	}

	for _, tt := range tests {
		op, table := describeSQL(tt.sql)
		assert.Equal(t, tt.op, op, tt.sql)
		assert.Equal(t, tt.table, table, tt.sql)
	}
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("off"))
	assert.Equal(t, gormlogger.Error, ParseGormLevel("ERROR"))
	assert.Equal(t, gormlogger.Info, ParseGormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("bogus"))
}

func TestGormTraceLogsFailuresAndSlowQueries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger("warn", 50*time.Millisecond)
	ctx := context.Background()
	query := func() (string, int64) { return `SELECT * FROM "invoices" WHERE id = 7`, 0 }

	l.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), query, nil)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now(), query, errors.New("connection reset"))
	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "invoices", entries[0].ContextMap()["table"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, true, entries[1].ContextMap()["slow"])
}
