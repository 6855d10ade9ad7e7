package historian

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A Temperature is one recorded zone sample.
type Temperature struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Zone        string    `json:"zone"`
	Temperature float64   `json:"temperature"`
	Target      float64   `json:"target"`
}

// A Transition is one recorded actuator state change.
type Transition struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Actuator string    `json:"actuator"`
	State    bool      `json:"state"`
}

const schema = `
CREATE TABLE IF NOT EXISTS temperatures (
	id TEXT PRIMARY KEY,
	time TIMESTAMP NOT NULL,
	zone TEXT NOT NULL,
	temperature REAL NOT NULL,
	target REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS temperatures_zone_time ON temperatures (zone, time);
CREATE TABLE IF NOT EXISTS transitions (
	id TEXT PRIMARY KEY,
	time TIMESTAMP NOT NULL,
	actuator TEXT NOT NULL,
	state INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_actuator_time ON transitions (actuator, time);
`

// A Store persists temperature samples and actuator transitions in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store on db, creating the tables if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &Store{db: db}, nil
}

// AddTemperature inserts a sample. A zero ID or Time is filled in.
func (s *Store) AddTemperature(ctx context.Context, sample Temperature) error {
	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO temperatures (id, time, zone, temperature, target) VALUES (?, ?, ?, ?, ?)`,
		sample.ID, sample.Time.UTC(), sample.Zone, sample.Temperature, sample.Target,
	)
	return err
}

// AddTransition inserts a state change. A zero ID or Time is filled in.
func (s *Store) AddTransition(ctx context.Context, transition Transition) error {
	if transition.ID == "" {
		transition.ID = uuid.NewString()
	}
	if transition.Time.IsZero() {
		transition.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, time, actuator, state) VALUES (?, ?, ?, ?)`,
		transition.ID, transition.Time.UTC(), transition.Actuator, transition.State,
	)
	return err
}

// Temperatures returns the samples for zone in [from, to], oldest first. Zero
// bounds are open-ended; an empty zone matches all zones.
func (s *Store) Temperatures(ctx context.Context, zone string, from, to time.Time) ([]Temperature, error) {
	query := `SELECT id, time, zone, temperature, target FROM temperatures`
	conds, args := timeRange(zone, "zone", from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY time ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	samples := make([]Temperature, 0)
	for rows.Next() {
		var sample Temperature
		if err = rows.Scan(&sample.ID, &sample.Time, &sample.Zone, &sample.Temperature, &sample.Target); err != nil {
			return nil, err
		}
		sample.Time = sample.Time.UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Transitions returns the state changes for actuator in [from, to], oldest
// first. Zero bounds are open-ended; an empty actuator matches all actuators.
func (s *Store) Transitions(ctx context.Context, actuator string, from, to time.Time) ([]Transition, error) {
	query := `SELECT id, time, actuator, state FROM transitions`
	conds, args := timeRange(actuator, "actuator", from, to)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY time ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	transitions := make([]Transition, 0)
	for rows.Next() {
		var transition Transition
		if err = rows.Scan(&transition.ID, &transition.Time, &transition.Actuator, &transition.State); err != nil {
			return nil, err
		}
		transition.Time = transition.Time.UTC()
		transitions = append(transitions, transition)
	}
	return transitions, rows.Err()
}

func timeRange(name, column string, from, to time.Time) ([]string, []any) {
	var conds []string
	var args []any
	if name != "" {
		conds = append(conds, column+" = ?")
		args = append(args, name)
	}
	if !from.IsZero() {
		conds = append(conds, "time >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "time <= ?")
		args = append(args, to.UTC())
	}
	return conds, args
}
