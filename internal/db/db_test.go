package db

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(t.TempDir() + "/test.db")
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB_CreatesParentDir(t *testing.T) {
	db, err := OpenDB(t.TempDir() + "/nested/dir/tutor.db")
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Ping())
}

func TestInitSchema(t *testing.T) {
	db := testDB(t)

	// Verify both tables exist by querying sqlite_master.
	tables := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('dialogue_memory','events')`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables[name] = true
	}

	for _, want := range []string{"dialogue_memory", "events"} {
		assert.True(t, tables[want], "table %q not created", want)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`INSERT INTO dialogue_memory (user_message, model_response, hash) VALUES ('a', 'b', 'h')`)
	require.NoError(t, err)

	// Second startup against the same file keeps existing rows.
	require.NoError(t, InitSchema(db))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM dialogue_memory`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDialogueMemory_HashUnique(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`INSERT INTO dialogue_memory (user_message, model_response, hash) VALUES ('a', 'b', 'h')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO dialogue_memory (user_message, model_response, hash) VALUES ('c', 'd', 'h')`)
	assert.Error(t, err, "expected unique constraint violation on hash")
}

func TestLogEvent_Basic(t *testing.T) {
	db := testDB(t)

	id1, err := LogEvent(db, nil, EventSessionStarted, map[string]any{"session_id": "s-1", "remote": "127.0.0.1"})
	require.NoError(t, err)
	assert.Positive(t, id1)

	id2, err := LogEvent(db, nil, EventProcessStarted, map[string]any{"pid": 456})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	// Verify timestamp is non-zero.
	var ts int64
	require.NoError(t, db.QueryRow(`SELECT timestamp FROM events WHERE id = ?`, id1).Scan(&ts))
	assert.NotZero(t, ts)

	// Verify payload is valid JSON.
	var payloadStr string
	require.NoError(t, db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id1).Scan(&payloadStr))
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloadStr), &payload))
	assert.Equal(t, "s-1", payload["session_id"])
}

func TestLogEvent_WithParent(t *testing.T) {
	db := testDB(t)

	parentID, err := LogEvent(db, nil, EventSessionStarted, map[string]any{"session_id": "s-1"})
	require.NoError(t, err)

	childID, err := LogEvent(db, &parentID, EventTurnStarted, map[string]any{"turn": 1})
	require.NoError(t, err)

	var storedParent int64
	require.NoError(t, db.QueryRow(`SELECT parent_id FROM events WHERE id = ?`, childID).Scan(&storedParent))
	assert.Equal(t, parentID, storedParent)

	// Root event has NULL parent_id.
	var nullParent sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT parent_id FROM events WHERE id = ?`, parentID).Scan(&nullParent))
	assert.False(t, nullParent.Valid)
}

func TestLogEvent_NilPayload(t *testing.T) {
	db := testDB(t)

	id, err := LogEvent(db, nil, EventSessionEnded, nil)
	require.NoError(t, err)

	var payload sql.NullString
	require.NoError(t, db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id).Scan(&payload))
	assert.False(t, payload.Valid)
}

func TestLogEvent_PayloadText(t *testing.T) {
	db := testDB(t)

	text := "Good answer.\nWhat about \"Hà Nội\" <food> & culture"
	id, err := LogEvent(db, nil, EventReplyGenerated, map[string]any{"text": text, "input_tokens": 12})
	require.NoError(t, err)

	var payloadStr string
	require.NoError(t, db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id).Scan(&payloadStr))
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloadStr), &payload))
	assert.Equal(t, text, payload["text"])
	assert.EqualValues(t, 12, payload["input_tokens"])

	// The payload column stays queryable by SQLite's JSON functions.
	var got string
	require.NoError(t, db.QueryRow(`SELECT json_extract(payload, '$.text') FROM events WHERE id = ?`, id).Scan(&got))
	assert.Equal(t, text, got)
}

func TestLogEvent_UnencodablePayload(t *testing.T) {
	db := testDB(t)

	_, err := LogEvent(db, nil, EventTurnFailed, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal event payload")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Zero(t, count)
}
