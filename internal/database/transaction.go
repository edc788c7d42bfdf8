package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// AtomicBatch sends several statements in one BEGIN/COMMIT TRANSACTION
// block, so they apply all or nothing:
//
//	err := database.NewAtomicBatch().
//		Add("DELETE review WHERE tour = $id", vars).
//		Add("DELETE $id", vars).
//		Execute(ctx, db)
//
// Variables are renamed per statement, so two statements may both bind $id
// to different values. Nothing is sent until Execute.
type AtomicBatch struct {
	statements []batchStatement
}

type batchStatement struct {
	query string
	vars  map[string]interface{}
}

// NewAtomicBatch creates an empty batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{}
}

// Add appends a statement
func (b *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	b.statements = append(b.statements, batchStatement{query: query, vars: vars})
	return b
}

// Len returns the number of statements
func (b *AtomicBatch) Len() int {
	return len(b.statements)
}

// Build renders the transaction and its merged variables. Statement n binds
// its variable $name as $s<n>_name.
func (b *AtomicBatch) Build() (string, map[string]interface{}) {
	if len(b.statements) == 0 {
		return "", nil
	}

	vars := make(map[string]interface{})
	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for i, stmt := range b.statements {
		query := stmt.query
		// Longest names first so $id does not rewrite the prefix of $id_list.
		names := make([]string, 0, len(stmt.vars))
		for name := range stmt.vars {
			names = append(names, name)
		}
		slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })
		for _, name := range names {
			renamed := fmt.Sprintf("s%d_%s", i, name)
			query = strings.ReplaceAll(query, "$"+name, "$"+renamed)
			vars[renamed] = stmt.vars[name]
		}

		sb.WriteString(strings.TrimSuffix(strings.TrimSpace(query), ";"))
		sb.WriteString(";\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")
	return sb.String(), vars
}

// Execute sends the batch. An empty batch does nothing.
func (b *AtomicBatch) Execute(ctx context.Context, db Database) error {
	if len(b.statements) == 0 {
		return nil
	}
	query, vars := b.Build()
	return db.Execute(ctx, query, vars)
}
