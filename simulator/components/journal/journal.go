// Package journal keeps a SQLite record of every uplink attempt and its outcome.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/metrics"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05.000"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS uplinks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    dev_addr TEXT NOT NULL,
    product TEXT,
    event_type TEXT NOT NULL,
    fcnt INTEGER,
    fport INTEGER,
    payload TEXT,
    ok INTEGER,
    detail TEXT
);`

// Entry is one journal row. Nil pointers are stored as NULL.
type Entry struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	DevAddr   string    `json:"devAddr"`
	Product   string    `json:"product"`
	EventType string    `json:"eventType"`
	FCnt      *uint32   `json:"fCnt,omitempty"`
	FPort     *uint8    `json:"fPort,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	OK        *bool     `json:"ok,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

type Stats struct {
	Frames    int `json:"frames"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path; ":memory:" works for tests.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// one writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func nullable[T uint32 | uint8](v *T) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var ok interface{}
	if e.OK != nil {
		ok = *e.OK
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO uplinks(timestamp, dev_addr, product, event_type, fcnt, fport, payload, ok, detail) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.Time.UTC().Format(timeLayout), e.DevAddr, e.Product, e.EventType,
		nullable(e.FCnt), nullable(e.FPort), e.Payload, ok, e.Detail)
	if err != nil {
		metrics.JournalWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("insert journal entry: %w", err)
	}
	metrics.JournalWrites.WithLabelValues("ok").Inc()
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, timestamp, dev_addr, product, event_type, fcnt, fport, payload, ok, detail FROM uplinks ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			ts               string
			product, payload sql.NullString
			detail           sql.NullString
			fcnt, fport      sql.NullInt64
			ok               sql.NullBool
		)
		if err := rows.Scan(&e.ID, &ts, &e.DevAddr, &product, &e.EventType, &fcnt, &fport, &payload, &ok, &detail); err != nil {
			return nil, err
		}
		if e.Time, err = time.ParseInLocation(timeLayout, ts, time.UTC); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.Product, e.Payload, e.Detail = product.String, payload.String, detail.String
		if fcnt.Valid {
			v := uint32(fcnt.Int64)
			e.FCnt = &v
		}
		if fport.Valid {
			v := uint8(fport.Int64)
			e.FPort = &v
		}
		if ok.Valid {
			v := ok.Bool
			e.OK = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := j.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(event_type = ?), 0),
		COALESCE(SUM(event_type = ? AND ok = 1), 0),
		COALESCE(SUM(event_type = ? AND ok = 0), 0),
		COALESCE(SUM(event_type = ?), 0)
		FROM uplinks`,
		events.EventUplink, events.EventTxDone, events.EventTxDone, events.EventError,
	).Scan(&s.Frames, &s.Delivered, &s.Failed, &s.Errors)
	return s, err
}

// EntryFromEvent converts the node events worth journaling. Other events return
// false.
func EntryFromEvent(evt events.NodeEvent) (Entry, bool) {
	e := Entry{
		Time:      evt.Time,
		DevAddr:   evt.DevAddr,
		Product:   evt.Product,
		EventType: evt.Type,
		FCnt:      evt.FCnt,
		FPort:     evt.FPort,
		OK:        evt.OK,
	}
	switch evt.Type {
	case events.EventUplink:
		e.Payload = evt.Payload
		e.Detail = evt.Flags
	case events.EventRadio:
		e.Payload = evt.PHYPayload
		e.Detail = evt.Extra["error"]
	case events.EventTxDone:
	case events.EventError:
		e.Detail = evt.Extra["error"]
	default:
		return Entry{}, false
	}
	return e, true
}

// Writer records node events from a broker subscription until ctx is cancelled
// or the channel closes, then drains what is already buffered.
func (j *Journal) Writer(ctx context.Context, wg *sync.WaitGroup, eventChan <-chan interface{}) {
	defer wg.Done()
	slog.Debug("journal writer started", "component", "journal")
	defer slog.Debug("journal writer stopped", "component", "journal")

	write := func(raw interface{}) {
		evt, ok := raw.(events.NodeEvent)
		if !ok {
			return
		}
		e, ok := EntryFromEvent(evt)
		if !ok {
			return
		}
		if err := j.Record(context.Background(), e); err != nil {
			slog.Error("journal write failed", "component", "journal", "error", err)
		}
	}

	for {
		select {
		case raw, ok := <-eventChan:
			if !ok {
				return
			}
			write(raw)
		case <-ctx.Done():
			for len(eventChan) > 0 {
				raw, ok := <-eventChan
				if !ok {
					return
				}
				write(raw)
			}
			return
		}
	}
}
