package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Diagnostics is the server-side view of a failed request. It is logged and
// never sent to clients.
type Diagnostics struct {
	Message string
	Code    Code
	Chain   []string
	// Postgres is set when a pgx error sits anywhere in the chain.
	Postgres *pgconn.PgError
}

func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error(), Code: CodeOf(err)}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.Postgres = pgErr
	}
	return d
}

// Fields flattens the diagnostics into structured log fields.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.ConstraintName
		fields["pg_table"] = pg.TableName
		fields["pg_column"] = pg.ColumnName
		fields["pg_detail"] = pg.Detail
	}
	return fields
}
