package foreign

import (
	"bzr/internal/object"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB owns the connections a single evaluator opened. Handles are small
// integers that only mean something to the DB that issued them.
type DB struct {
	nextID       int64
	connections  map[int64]*sql.DB
	transactions map[int64]*sql.Tx
}

func NewDB() *DB {
	return &DB{
		connections:  map[int64]*sql.DB{},
		transactions: map[int64]*sql.Tx{},
	}
}

// Builtins returns the db_* functions bound to d.
func (d *DB) Builtins() map[string]*object.Builtin {
	return map[string]*object.Builtin{
		"db_connect":  d.fnConnect(),
		"db_exec":     d.fnExec(),
		"db_query":    d.fnQuery(),
		"db_begin":    d.fnBegin(),
		"db_commit":   d.fnCommit(),
		"db_rollback": d.fnRollback(),
		"db_close":    d.fnClose(),
	}
}

// Close rolls back open transactions and closes every connection still open.
func (d *DB) Close() error {
	var errs []error
	for id, tx := range d.transactions {
		if err := tx.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("rollback handle %d: %w", id, err))
		}
		delete(d.transactions, id)
	}
	for id, db := range d.connections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close handle %d: %w", id, err))
		}
		delete(d.connections, id)
	}
	return errors.Join(errs...)
}

func (d *DB) fnConnect() *object.Builtin {
	return &object.Builtin{
		Name: "db_connect",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 2 {
				return ctx.NewError("db_connect expects 2 arguments: dsn, driver")
			}
			dsn, err := unpackString(args[0], "db_connect")
			if err != nil {
				return ctx.NewError("%s", err)
			}
			driver, err := unpackString(args[1], "db_connect")
			if err != nil {
				return ctx.NewError("%s", err)
			}

			db, err := sql.Open(driver, dsn)
			if err != nil {
				return ctx.NewError("failed to open connection: %v", err)
			}
			if err := db.Ping(); err != nil {
				db.Close()
				return ctx.NewError("failed to ping database: %v", err)
			}

			d.nextID++
			d.connections[d.nextID] = db
			slog.Debug("database connected",
				slog.String("driver", driver),
				slog.Int64("handle", d.nextID))
			return &object.Integer{Value: d.nextID}
		},
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// target resolves a handle to its open transaction, or to the connection when
// no transaction is running.
func (d *DB) target(ctx object.EvaluatorContext, handle object.Object, name string) (querier, *object.Error) {
	id, err := unpackInteger(handle, name)
	if err != nil {
		return nil, ctx.NewError("%s", err)
	}
	if tx, ok := d.transactions[id]; ok {
		return tx, nil
	}
	if db, ok := d.connections[id]; ok {
		return db, nil
	}
	return nil, ctx.NewError("invalid connection handle %d", id)
}

func (d *DB) fnExec() *object.Builtin {
	return &object.Builtin{
		Name: "db_exec",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 2 {
				return ctx.NewError("db_exec expects at least 2 arguments: handle, sql")
			}
			q, errObj := d.target(ctx, args[0], "db_exec")
			if errObj != nil {
				return errObj
			}
			query, err := unpackString(args[1], "db_exec")
			if err != nil {
				return ctx.NewError("%s", err)
			}
			params, err := sqlParams(args[2:])
			if err != nil {
				return ctx.NewError("db_exec: %v", err)
			}

			result, err := q.Exec(query, params...)
			if err != nil {
				return ctx.NewError("exec failed: %v", err)
			}

			// Drivers without the concept (postgres) report an error; both are 0 then.
			affected, _ := result.RowsAffected()
			lastID, _ := result.LastInsertId()

			return &object.Array{Elements: []object.Object{
				&object.Integer{Value: affected},
				&object.Integer{Value: lastID},
			}}
		},
	}
}

func (d *DB) fnQuery() *object.Builtin {
	return &object.Builtin{
		Name: "db_query",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) < 2 {
				return ctx.NewError("db_query expects at least 2 arguments: handle, sql")
			}
			q, errObj := d.target(ctx, args[0], "db_query")
			if errObj != nil {
				return errObj
			}
			query, err := unpackString(args[1], "db_query")
			if err != nil {
				return ctx.NewError("%s", err)
			}
			params, err := sqlParams(args[2:])
			if err != nil {
				return ctx.NewError("db_query: %v", err)
			}

			rows, err := q.Query(query, params...)
			if err != nil {
				return ctx.NewError("query failed: %v", err)
			}
			defer rows.Close()

			result, err := renderRows(rows)
			if err != nil {
				return ctx.NewError("query failed: %v", err)
			}
			return result
		},
	}
}

func (d *DB) fnBegin() *object.Builtin {
	return &object.Builtin{
		Name: "db_begin",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("db_begin expects 1 argument: handle")
			}
			id, err := unpackInteger(args[0], "db_begin")
			if err != nil {
				return ctx.NewError("%s", err)
			}

			db, ok := d.connections[id]
			if !ok {
				return ctx.NewError("invalid connection handle %d", id)
			}
			if _, open := d.transactions[id]; open {
				return ctx.NewError("handle %d already has an open transaction", id)
			}

			tx, err := db.Begin()
			if err != nil {
				return ctx.NewError("failed to begin transaction: %v", err)
			}

			d.transactions[id] = tx
			return args[0]
		},
	}
}

func (d *DB) fnCommit() *object.Builtin {
	return d.finishTransaction("db_commit", (*sql.Tx).Commit)
}

func (d *DB) fnRollback() *object.Builtin {
	return d.finishTransaction("db_rollback", (*sql.Tx).Rollback)
}

func (d *DB) finishTransaction(name string, finish func(*sql.Tx) error) *object.Builtin {
	return &object.Builtin{
		Name: name,
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("%s expects 1 argument: handle", name)
			}
			id, err := unpackInteger(args[0], name)
			if err != nil {
				return ctx.NewError("%s", err)
			}

			tx, ok := d.transactions[id]
			if !ok {
				return ctx.NewError("invalid transaction handle %d", id)
			}
			delete(d.transactions, id)

			if err := finish(tx); err != nil {
				return ctx.NewError("%s failed: %v", name, err)
			}
			return args[0]
		},
	}
}

func (d *DB) fnClose() *object.Builtin {
	return &object.Builtin{
		Name: "db_close",
		Fn: func(ctx object.EvaluatorContext, args ...object.Object) object.Object {
			if len(args) != 1 {
				return ctx.NewError("db_close expects 1 argument: handle")
			}
			id, err := unpackInteger(args[0], "db_close")
			if err != nil {
				return ctx.NewError("%s", err)
			}

			if tx, ok := d.transactions[id]; ok {
				tx.Rollback()
				delete(d.transactions, id)
			}
			db, ok := d.connections[id]
			if !ok {
				return ctx.NewError("invalid connection handle %d", id)
			}
			delete(d.connections, id)
			if err := db.Close(); err != nil {
				return ctx.NewError("failed to close connection: %v", err)
			}
			return ctx.Null()
		},
	}
}

// renderRows turns a result set into an array of rows, each an array of column
// values in select order.
func renderRows(rows *sql.Rows) (object.Object, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &object.Array{Elements: []object.Object{}}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make([]object.Object, len(columns))
		for i, v := range values {
			row[i] = mapValue(v)
		}
		result.Elements = append(result.Elements, &object.Array{Elements: row})
	}
	return result, rows.Err()
}

func mapValue(v interface{}) object.Object {
	switch x := v.(type) {
	case nil:
		return object.NULL
	case int64:
		return &object.Integer{Value: x}
	case float64:
		return &object.String{Value: strconv.FormatFloat(x, 'f', -1, 64)}
	case []byte:
		return &object.String{Value: string(x)}
	case string:
		return &object.String{Value: x}
	case bool:
		return &object.Boolean{Value: x}
	case time.Time:
		return &object.String{Value: x.Format(time.RFC3339)}
	default:
		return &object.String{Value: fmt.Sprintf("%v", v)}
	}
}

func sqlParams(args []object.Object) ([]interface{}, error) {
	params := make([]interface{}, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case *object.Integer:
			params[i] = a.Value
		case *object.String:
			params[i] = a.Value
		case *object.Boolean:
			params[i] = a.Value
		case *object.Null:
			params[i] = nil
		default:
			return nil, fmt.Errorf("parameter %d: %s cannot be sent to the database", i+1, arg.Type())
		}
	}
	return params, nil
}

func unpackString(arg object.Object, name string) (string, error) {
	value, ok := arg.(*object.String)
	if !ok {
		return "", fmt.Errorf("argument to `%s` must be str, got=%s", name, arg.Type())
	}
	return value.Value, nil
}

func unpackInteger(arg object.Object, name string) (int64, error) {
	value, ok := arg.(*object.Integer)
	if !ok {
		return -1, fmt.Errorf("argument to `%s` must be int, got=%s", name, arg.Type())
	}
	return value.Value, nil
}
