package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stupiduntilnot/ielts-tutor/internal/memory"
)

// Event represents a row from the events table.
type Event struct {
	ID        int64
	Timestamp int64
	ParentID  sql.NullInt64
	EventType string
	Payload   sql.NullString
	Children  []*Event
}

type options struct {
	dbPath    string
	eventID   int64
	sessionID string
	exchanges int
	maxDepth  int
	jsonOut   bool
	noPayload bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("[tutor-log] %v", err)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("tutor-log", flag.ContinueOnError)
	fs.StringVar(&opts.dbPath, "db", envOrDefault("TUTOR_DB_PATH", "ielts_memory.db"), "SQLite database path")
	fs.Int64Var(&opts.eventID, "id", 0, "show subtree of a specific event ID")
	fs.StringVar(&opts.sessionID, "session", "", "show the event tree of a session id")
	fs.IntVar(&opts.exchanges, "exchanges", 0, "print the N most recent stored exchanges instead of events")
	fs.IntVar(&opts.maxDepth, "L", 0, "limit display depth (0 = unlimited)")
	fs.BoolVar(&opts.jsonOut, "json", false, "output JSON format")
	fs.BoolVar(&opts.noPayload, "no-payload", false, "hide payload details")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", opts.dbPath+"?mode=ro&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if opts.exchanges > 0 {
		return printExchanges(out, db, opts.exchanges, opts.jsonOut)
	}

	rootID := opts.eventID
	if rootID == 0 {
		rootID, err = sessionRoot(db, opts.sessionID)
		if err != nil {
			return fmt.Errorf("find session root: %w", err)
		}
	}

	events, err := querySubtree(db, rootID)
	if err != nil {
		return fmt.Errorf("query subtree: %w", err)
	}
	root := buildTree(events, rootID)
	if root == nil {
		return fmt.Errorf("event %d not found", rootID)
	}

	if opts.jsonOut {
		return printJSON(out, root, opts.maxDepth, opts.noPayload)
	}
	printTree(out, root, "", true, 1, opts.maxDepth, opts.noPayload)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// sessionRoot finds the session.started event for sessionID, or the most
// recent one when sessionID is empty.
func sessionRoot(db *sql.DB, sessionID string) (int64, error) {
	var id int64
	var err error
	if sessionID == "" {
		err = db.QueryRow(
			`SELECT id FROM events WHERE event_type = 'session.started'
			 ORDER BY id DESC LIMIT 1`,
		).Scan(&id)
	} else {
		err = db.QueryRow(
			`SELECT id FROM events WHERE event_type = 'session.started'
			 AND json_extract(payload, '$.session_id') = ?
			 ORDER BY id DESC LIMIT 1`, sessionID,
		).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if sessionID == "" {
			return 0, fmt.Errorf("no session.started event found")
		}
		return 0, fmt.Errorf("no session.started event for session %s", sessionID)
	}
	return id, err
}

// querySubtree returns all events in the subtree rooted at rootID using a recursive CTE.
func querySubtree(db *sql.DB, rootID int64) ([]*Event, error) {
	rows, err := db.Query(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM events WHERE id = ?
			UNION ALL
			SELECT e.id FROM events e JOIN subtree s ON e.parent_id = s.id
		)
		SELECT e.id, e.timestamp, e.parent_id, e.event_type, e.payload
		FROM events e
		WHERE e.id IN (SELECT id FROM subtree)
		ORDER BY e.id ASC
	`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev := &Event{}
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.ParentID, &ev.EventType, &ev.Payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// buildTree organizes a flat list of events into a tree rooted at rootID.
func buildTree(events []*Event, rootID int64) *Event {
	byID := make(map[int64]*Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	for _, ev := range events {
		if ev.ParentID.Valid && ev.ParentID.Int64 != ev.ID {
			if parent, ok := byID[ev.ParentID.Int64]; ok {
				parent.Children = append(parent.Children, ev)
			}
		}
	}
	for _, ev := range events {
		sort.Slice(ev.Children, func(i, j int) bool {
			return ev.Children[i].ID < ev.Children[j].ID
		})
	}
	return byID[rootID]
}

// printTree renders the event tree using box-drawing characters.
func printTree(w io.Writer, ev *Event, prefix string, isLast bool, depth, maxDepth int, noPayload bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	line := formatEvent(ev, noPayload)
	if depth == 1 {
		fmt.Fprintln(w, line)
	} else {
		fmt.Fprintln(w, prefix+connector+line)
	}

	childPrefix := prefix
	if depth > 1 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	if maxDepth > 0 && depth >= maxDepth {
		if len(ev.Children) > 0 {
			fmt.Fprintln(w, childPrefix+"└── [...]")
		}
		return
	}

	for i, child := range ev.Children {
		printTree(w, child, childPrefix, i == len(ev.Children)-1, depth+1, maxDepth, noPayload)
	}
}

// formatEvent formats a single event line: [id] timestamp  event_type  key=value ...
func formatEvent(ev *Event, noPayload bool) string {
	ts := time.Unix(ev.Timestamp, 0).UTC().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%d] %s  %s", ev.ID, ts, ev.EventType)

	if noPayload {
		return line
	}
	m := decodePayload(ev.Payload)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf("  %s=%s", k, formatValue(m[k]))
	}
	return line
}

func decodePayload(payload sql.NullString) map[string]any {
	if !payload.Valid || payload.String == "" {
		return nil
	}
	var m map[string]any
	if err := sonic.UnmarshalString(payload.String, &m); err != nil {
		return nil
	}
	return m
}

// formatValue converts a payload value to a display string, truncating long text.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 80 {
			return fmt.Sprintf("%q", val[:80]+"...")
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

type jsonEvent struct {
	ID        int64          `json:"id"`
	Timestamp int64          `json:"timestamp"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Children  []jsonEvent    `json:"children,omitempty"`
}

func toJSONEvent(ev *Event, depth, maxDepth int, noPayload bool) jsonEvent {
	je := jsonEvent{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		EventType: ev.EventType,
	}
	if !noPayload {
		je.Payload = decodePayload(ev.Payload)
	}
	if maxDepth > 0 && depth >= maxDepth {
		return je
	}
	for _, child := range ev.Children {
		je.Children = append(je.Children, toJSONEvent(child, depth+1, maxDepth, noPayload))
	}
	return je
}

func printJSON(w io.Writer, root *Event, maxDepth int, noPayload bool) error {
	return writeJSON(w, toJSONEvent(root, 1, maxDepth, noPayload))
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type jsonExchange struct {
	ID      int64  `json:"id"`
	User    string `json:"user"`
	Teacher string `json:"teacher"`
	Hash    string `json:"hash"`
}

// printExchanges prints the last n stored exchanges, oldest first, in the
// same shape the tutor feeds back to the model.
func printExchanges(w io.Writer, db *sql.DB, n int, jsonOut bool) error {
	recent, err := memory.NewStore(db).Recent(context.Background(), n)
	if err != nil {
		return err
	}
	if jsonOut {
		out := make([]jsonExchange, 0, len(recent))
		for _, ex := range recent {
			out = append(out, jsonExchange{ID: ex.SequenceID, User: ex.UserMessage, Teacher: ex.ModelResponse, Hash: ex.ContentHash})
		}
		return writeJSON(w, out)
	}
	for _, ex := range recent {
		fmt.Fprintf(w, "[%d] %s\n", ex.SequenceID, ex.ContentHash[:min(12, len(ex.ContentHash))])
		fmt.Fprintf(w, "    User: %s\n", ex.UserMessage)
		fmt.Fprintf(w, "    Teacher: %s\n", ex.ModelResponse)
	}
	return nil
}
