// Package fakedb provides a scripted database.Database for repository tests.
//
// Each Query call consumes the next queued response, in order. Calls are
// recorded so tests can assert on the rendered SurrealQL and its variables:
//
//	db := fakedb.New()
//	db.Respond(map[string]interface{}{"id": "tour:abc", "name": "The Forest Hiker"})
//	tour, err := repo.FindByID(ctx, "abc")
//	db.Calls[0].Query // "SELECT * OMIT version FROM $id"
package fakedb

import (
	"context"
	"sync"

	"github.com/forgo/trailhead/api/internal/database"
)

// Call is one recorded statement
type Call struct {
	Query string
	Vars  map[string]interface{}
}

type response struct {
	rows []interface{}
	err  error
}

// DB is a database.Database that replays queued responses.
type DB struct {
	mu        sync.Mutex
	Calls     []Call
	responses []response
}

var _ database.Database = (*DB)(nil)

// New creates an empty fake
func New() *DB {
	return &DB{}
}

// Respond queues a statement result made of rows
func (d *DB) Respond(rows ...map[string]interface{}) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	d.responses = append(d.responses, response{rows: out})
	return d
}

// Fail queues an error
func (d *DB) Fail(err error) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = append(d.responses, response{err: err})
	return d
}

// Last returns the most recent call
func (d *DB) Last() Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Calls) == 0 {
		return Call{}
	}
	return d.Calls[len(d.Calls)-1]
}

func (d *DB) next(query string, vars map[string]interface{}) response {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, Call{Query: query, Vars: vars})
	if len(d.responses) == 0 {
		return response{}
	}
	r := d.responses[0]
	d.responses = d.responses[1:]
	return r
}

func (d *DB) Connect(ctx context.Context) error { return nil }
func (d *DB) Close() error                      { return nil }
func (d *DB) Ping(ctx context.Context) error    { return nil }

func (d *DB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	r := d.next(query, vars)
	if r.err != nil {
		return nil, r.err
	}
	rows := r.rows
	if rows == nil {
		rows = []interface{}{}
	}
	return []interface{}{map[string]interface{}{"status": "OK", "result": rows}}, nil
}

func (d *DB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	return d.next(query, vars).err
}
