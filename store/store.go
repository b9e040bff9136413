/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package store keeps particle start positions and drifter trajectories
// in an SQLite database so that starts can be looked up by ID or by
// position.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ctessum/geom"
	_ "modernc.org/sqlite" // database driver

	"github.com/spatialmodel/driftval"
)

// ErrNotFound is returned when a start is not in the database.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS starts (
	id INTEGER PRIMARY KEY,
	drifter INTEGER NOT NULL,
	lon REAL NOT NULL,
	lat REAL NOT NULL,
	time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_starts_position ON starts(lon, lat);
CREATE TABLE IF NOT EXISTS samples (
	start_id INTEGER NOT NULL REFERENCES starts(id),
	age INTEGER NOT NULL,
	lon REAL NOT NULL,
	lat REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_start ON samples(start_id, age);
`

// Store is a database of starts and trajectories.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file name. Use ":memory:" for a
// database that is discarded when it is closed.
func Open(name string) (*Store, error) {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // in-memory databases exist per connection
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) tx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func putStart(ctx context.Context, stmt *sql.Stmt, st driftval.Start) error {
	if _, err := stmt.ExecContext(ctx, st.ID, st.Drifter, st.X, st.Y, st.Time.Unix()); err != nil {
		return fmt.Errorf("store: saving start %d: %w", st.ID, err)
	}
	return nil
}

const insertStart = "INSERT OR REPLACE INTO starts (id, drifter, lon, lat, time) VALUES (?, ?, ?, ?, ?)"

// PutStarts saves starts, replacing any with the same IDs.
func (s *Store) PutStarts(ctx context.Context, starts []driftval.Start) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertStart)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer stmt.Close()
		for _, st := range starts {
			if err := putStart(ctx, stmt, st); err != nil {
				return err
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStart(r scanner) (driftval.Start, error) {
	var st driftval.Start
	var t int64
	if err := r.Scan(&st.ID, &st.Drifter, &st.X, &st.Y, &t); err != nil {
		return st, err
	}
	st.Time = time.Unix(t, 0).UTC()
	return st, nil
}

// Starts returns all starts in order of ID.
func (s *Store) Starts(ctx context.Context) ([]driftval.Start, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, drifter, lon, lat, time FROM starts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer rows.Close()
	var o []driftval.Start
	for rows.Next() {
		st, err := scanStart(rows)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		o = append(o, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return o, nil
}

// Start returns the start with the given ID.
func (s *Store) Start(ctx context.Context, id int) (driftval.Start, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, drifter, lon, lat, time FROM starts WHERE id = ?", id)
	st, err := scanStart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: start %d", ErrNotFound, id)
	} else if err != nil {
		return st, fmt.Errorf("store: %w", err)
	}
	return st, nil
}

// StartID returns the ID of the start at p. If several starts share the
// position the lowest ID is returned.
func (s *Store) StartID(ctx context.Context, p geom.Point) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, "SELECT id FROM starts WHERE lon = ? AND lat = ? ORDER BY id LIMIT 1",
		p.X, p.Y).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: start at %v", ErrNotFound, p)
	} else if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return id, nil
}

// PutTrajectories saves trajectories and their starts, replacing the
// samples of any trajectory already saved for the same start.
func (s *Store) PutTrajectories(ctx context.Context, trajs map[int]driftval.Trajectory) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		start, err := tx.PrepareContext(ctx, insertStart)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer start.Close()
		del, err := tx.PrepareContext(ctx, "DELETE FROM samples WHERE start_id = ?")
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer del.Close()
		ins, err := tx.PrepareContext(ctx, "INSERT INTO samples (start_id, age, lon, lat) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer ins.Close()

		for id, tr := range trajs {
			if id != tr.ID {
				return fmt.Errorf("store: trajectory with start %d saved under ID %d", tr.ID, id)
			}
			if err := putStart(ctx, start, tr.Start); err != nil {
				return err
			}
			if _, err := del.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("store: %w", err)
			}
			for _, smp := range tr.Samples {
				if _, err := ins.ExecContext(ctx, id, int64(smp.Age/time.Second), smp.X, smp.Y); err != nil {
					return fmt.Errorf("store: saving sample of start %d: %w", id, err)
				}
			}
		}
		return nil
	})
}

// Trajectories returns the saved trajectories keyed by start ID, with
// samples in the order they were saved. Trajectories without samples are
// left out.
func (s *Store) Trajectories(ctx context.Context) (map[int]driftval.Trajectory, error) {
	starts, err := s.Starts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]driftval.Start, len(starts))
	for _, st := range starts {
		byID[st.ID] = st
	}
	rows, err := s.db.QueryContext(ctx, "SELECT start_id, age, lon, lat FROM samples ORDER BY start_id, rowid")
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	defer rows.Close()
	o := make(map[int]driftval.Trajectory)
	for rows.Next() {
		var id int
		var age int64
		var p geom.Point
		if err := rows.Scan(&id, &age, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		tr, ok := o[id]
		if !ok {
			tr.Start = byID[id]
		}
		tr.Samples = append(tr.Samples, driftval.Sample{Age: time.Duration(age) * time.Second, Point: p})
		o[id] = tr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return o, nil
}
