package errors

import (
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrorDump is the log view of an error: its typed code, the unwrap chain and,
// for storage failures, what the database reported.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	DB         *DBError `json:"db,omitempty"`
}

// DBError is the driver-level part of a storage failure. Driver is
// "postgres" for pgx errors and "sqlite" for the dev and test database.
// Sentinel names a gorm sentinel when no driver error is present.
type DBError struct {
	Driver     string `json:"driver,omitempty"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
	Sentinel   string `json:"sentinel,omitempty"`
}

// Fields flattens the database part for structured logging.
func (d *DBError) Fields() map[string]any {
	if d == nil {
		return nil
	}
	fields := map[string]any{}
	for key, value := range map[string]string{
		"db_driver":     d.Driver,
		"db_code":       d.Code,
		"db_constraint": d.Constraint,
		"db_table":      d.Table,
		"db_column":     d.Column,
		"db_sentinel":   d.Sentinel,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dbError(err)
	return d
}

func dbError(err error) *DBError {
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return &DBError{
			Driver:     "postgres",
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}

	var liteErr sqlite3.Error
	if stdErrors.As(err, &liteErr) {
		out := &DBError{
			Driver:  "sqlite",
			Code:    strconv.Itoa(int(liteErr.ExtendedCode)),
			Message: liteErr.Error(),
		}
		// "UNIQUE constraint failed: pending_checkouts.idempotency_key"
		if _, target, ok := strings.Cut(out.Message, "constraint failed: "); ok {
			first, _, _ := strings.Cut(target, ",")
			out.Table, out.Column, _ = strings.Cut(strings.TrimSpace(first), ".")
		}
		return out
	}

	switch {
	case stdErrors.Is(err, gorm.ErrDuplicatedKey):
		return &DBError{Sentinel: "duplicated_key"}
	case stdErrors.Is(err, gorm.ErrRecordNotFound):
		return &DBError{Sentinel: "record_not_found"}
	}
	return nil
}
