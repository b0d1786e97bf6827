package util

import (
	"context"
	"database/sql"
	"time"
)

// SetPool applies the connection pool limits shared by every sql.DB wrapper.
func SetPool(db *sql.DB, maxOpen int, lifetime time.Duration) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(max(maxOpen/2, 1))
	db.SetConnMaxLifetime(lifetime)
	db.SetConnMaxIdleTime(lifetime)
}

func QueryReturnList(ctx context.Context, db *sql.DB, sqlText string, args ...any) (rows [][]string, err error) {
	var cur *sql.Rows
	cur, err = db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return
	}
	defer cur.Close()

	cols, err := cur.Columns()
	if err != nil {
		return
	}

	values := make([]sql.RawBytes, len(cols))
	valuesP := make([]any, len(cols))
	for i := range values {
		valuesP[i] = &values[i]
	}

	for cur.Next() {
		err = cur.Scan(valuesP...)
		if err != nil {
			return
		}
		//must be allocated per row, RawBytes are reused by Scan
		row := make([]string, len(cols))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
			} else {
				row[i] = string(v)
			}
		}
		rows = append(rows, row)
	}
	err = cur.Err()
	return
}

// QueryReturnColumn returns the first column of every row.
func QueryReturnColumn(ctx context.Context, db *sql.DB, sqlText string, args ...any) ([]string, error) {
	rows, err := QueryReturnList(ctx, db, sqlText, args...)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(rows))
	for _, row := range rows {
		list = append(list, row[0])
	}
	return list, nil
}

func QueryReturnCount(ctx context.Context, db *sql.DB, sqlText string, args ...any) (cnt int64, err error) {
	err = db.QueryRowContext(ctx, sqlText, args...).Scan(&cnt)
	return
}
