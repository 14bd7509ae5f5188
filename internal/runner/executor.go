package runner

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"sqlstress/internal/pool"
)

// Executor runs one statement on an already acquired connection and feeds
// captured rows into a shared sink. The caller owns the connection.
type Executor struct {
	Mode    ResultMode
	Timeout time.Duration
	Rows    *Sink[[]string]
}

// Execute returns nil or a *CallError.
func (e Executor) Execute(ctx context.Context, conn pool.Conn, sqlText string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	if !IsQuery(sqlText) {
		_, err := conn.ExecContext(ctx, sqlText)
		return classify(ctx, err)
	}

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return classify(ctx, err)
	}
	defer rows.Close()

	// ResultNone leaves the result set unread; Close discards it.
	switch e.Mode {
	case ResultScalar:
		if rows.Next() {
			row, err := scanRow(rows)
			if err != nil {
				return classify(ctx, err)
			}
			e.add(row[:1])
		}
	case ResultRows:
		for !e.full() && rows.Next() {
			row, err := scanRow(rows)
			if err != nil {
				return classify(ctx, err)
			}
			e.add(row)
		}
	}

	if err := rows.Err(); err != nil {
		return classify(ctx, err)
	}
	return classify(ctx, rows.Close())
}

func (e Executor) add(row []string) {
	if e.Rows != nil {
		e.Rows.Add(row)
	}
}

func (e Executor) full() bool {
	return e.Rows == nil || e.Rows.Full()
}

func scanRow(rows *sql.Rows) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("query returned no columns")
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make([]string, len(cols))
	for i, v := range vals {
		out[i] = cellString(v)
	}
	return out, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// classify wraps err into a CallError, using ctx to tell a timeout from a
// plain failure. nil stays nil.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	return &CallError{Kind: kindFor(ctx, err, KindStatement), Err: err}
}

func kindFor(ctx context.Context, err error, fallback ErrorKind) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		if netErr != nil && netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	return fallback
}
