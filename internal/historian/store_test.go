package historian

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddTemperature(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO temperatures (id, time, zone, temperature, target) VALUES (?, ?, ?, ?, ?)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "CH", 18.5, 19.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.AddTemperature(t.Context(), Temperature{Zone: "CH", Temperature: 18.5, Target: 19.5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AddTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db)
	require.NoError(t, err)

	when := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transitions (id, time, actuator, state) VALUES (?, ?, ?, ?)`)).
		WithArgs("some-id", when, "HW", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.AddTransition(t.Context(), Transition{ID: "some-id", Time: when, Actuator: "HW", State: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Temperatures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db)
	require.NoError(t, err)

	from := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "time", "zone", "temperature", "target"}).
		AddRow("1", from.Add(time.Hour), "CH", 18.5, 19.5).
		AddRow("2", from.Add(2*time.Hour), "CH", 19.0, 19.5)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, time, zone, temperature, target FROM temperatures WHERE zone = ? AND time >= ? AND time <= ? ORDER BY time ASC`)).
		WithArgs("CH", from, to).
		WillReturnRows(rows)

	samples, err := store.Temperatures(t.Context(), "CH", from, to)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 18.5, samples[0].Temperature)
	assert.Equal(t, 19.0, samples[1].Temperature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Transitions_NoFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(schema)).WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db)
	require.NoError(t, err)

	when := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "time", "actuator", "state"}).
		AddRow("1", when, "CH", true).
		AddRow("2", when.Add(time.Hour), "CH", false)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, time, actuator, state FROM transitions ORDER BY time ASC`)).
		WillReturnRows(rows)

	transitions, err := store.Transitions(t.Context(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.True(t, transitions[0].State)
	assert.False(t, transitions[1].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}
