package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	calls int
	args  []any
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.calls++
	q.args = args
	return q.row
}

func TestClient_LookupFound(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q := &fakeQuerier{row: fakeRow{values: []any{
		"c-1", "Mauricio", "Mauricio Martínez González", "12345678", "+56982221070", created,
	}}}
	client := &Client{db: q}

	customer, err := client.Lookup(context.Background(), []string{"+56982221070", "56982221070"})
	require.NoError(t, err)
	require.NotNil(t, customer)

	assert.Equal(t, "Mauricio", customer.Name)
	assert.Equal(t, "12345678", customer.RUT)
	assert.Equal(t, created, customer.CreatedAt)
	assert.Equal(t, []any{[]string{"+56982221070", "56982221070"}}, q.args)
}

func TestClient_LookupNotFound(t *testing.T) {
	client := &Client{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	customer, err := client.Lookup(context.Background(), []string{"+10000000000"})
	assert.NoError(t, err)
	assert.Nil(t, customer)
}

func TestClient_LookupEmptyCandidatesSkipsQuery(t *testing.T) {
	q := &fakeQuerier{}
	client := &Client{db: q}

	customer, err := client.Lookup(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, customer)
	assert.Equal(t, 0, q.calls)
}

func TestClient_LookupFailure(t *testing.T) {
	client := &Client{db: &fakeQuerier{row: fakeRow{err: errors.New("connection refused")}}}

	customer, err := client.Lookup(context.Background(), []string{"+1"})
	assert.Error(t, err)
	assert.Nil(t, customer)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnectionConfig_DSN(t *testing.T) {
	cfg := ConnectionConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", Database: "bank", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/bank?sslmode=disable", cfg.DSN())
}

func TestCustomer_Metadata(t *testing.T) {
	var nilCustomer *Customer
	assert.Nil(t, nilCustomer.Metadata())

	c := &Customer{ID: "c-1", Name: "María", FullName: "María González Silva", RUT: "98765432", Phone: "+56987654321"}
	md := c.Metadata()
	assert.Equal(t, "c-1", md["customer_id"])
	assert.Equal(t, "María", md["customer_name"])
	assert.Equal(t, "+56987654321", md["customer_phone"])
}
