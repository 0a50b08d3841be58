package roomstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/partyroom/internal/game"
)

// SQLite keeps one JSONB document per room in the rooms table. Writes are
// last-write-wins; the in-process Store is the only writer.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Load(ctx context.Context, pin string) (game.Room, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM rooms WHERE pin = ?`, pin,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Room{}, ErrNotFound
	}
	if err != nil {
		return game.Room{}, err
	}
	var r game.Room
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return game.Room{}, fmt.Errorf("decoding room %s: %w", pin, err)
	}
	return r.Clone(), nil
}

// Insert stores a new room and fails with ErrExists if the PIN is taken.
func (s *SQLite) Insert(ctx context.Context, r game.Room, at time.Time) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (pin, status, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(pin) DO NOTHING`,
		r.Pin, string(r.Status), string(data), at.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, r game.Room, at time.Time) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (pin, status, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(pin) DO UPDATE SET status = excluded.status, data = excluded.data, updated_at = excluded.updated_at`,
		r.Pin, string(r.Status), string(data), at.UnixMilli(),
	)
	return err
}

func (s *SQLite) Delete(ctx context.Context, pin string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE pin = ?`, pin)
	return err
}

// Pins lists rooms with the given status.
func (s *SQLite) Pins(ctx context.Context, status game.Status) ([]string, error) {
	return s.pins(ctx, `SELECT pin FROM rooms WHERE status = ? ORDER BY pin`, string(status))
}

// IdleSince lists rooms not written since before.
func (s *SQLite) IdleSince(ctx context.Context, before time.Time) ([]string, error) {
	return s.pins(ctx, `SELECT pin FROM rooms WHERE updated_at < ? ORDER BY pin`, before.UnixMilli())
}

func (s *SQLite) pins(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pins []string
	for rows.Next() {
		var pin string
		if err := rows.Scan(&pin); err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
