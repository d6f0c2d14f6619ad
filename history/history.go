// Package history keeps a SQLite log of training runs and the metrics of
// every epoch phase.
package history

import (
	"context"
	"embed"
	"fmt"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

type Run struct {
	ID        int64
	Started   time.Time
	TrainFile string
	TrainMD5  string
	Config    string
}

type EpochRecord struct {
	Epoch    int
	Phase    string
	Loss     float64
	UAS      float64
	LAS      float64
	UEM      float64
	Duration time.Duration
}

type Store struct {
	pool *sqlitex.Pool
}

// Open opens (creating when needed) the database at path and makes sure
// the schema exists.
func Open(path string) (*Store, error) {
	pool, err := sqlitex.NewPool(fmt.Sprintf("file:%s", path), sqlitex.PoolOptions{
		PoolSize: runtime.NumCPU(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database at %s: %w", path, err)
	}
	s := &Store{pool: pool}
	if err := s.createSchema(); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	script, err := sqlFiles.ReadFile("sql/history.sql")
	if err != nil {
		return fmt.Errorf("failed to read embedded schema: %w", err)
	}
	conn, err := s.pool.Take(context.TODO())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, string(script), nil); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

// StartRun records a new run and returns its id.
func (s *Store) StartRun(run Run) (int64, error) {
	conn, err := s.pool.Take(context.TODO())
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	if run.Started.IsZero() {
		run.Started = time.Now()
	}
	err = sqlitex.Execute(conn, "INSERT INTO runs (started, train_file, train_md5, config) VALUES (?, ?, ?, ?)", &sqlitex.ExecOptions{
		Args: []interface{}{run.Started.UTC().Format(time.RFC3339Nano), run.TrainFile, run.TrainMD5, run.Config},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

func (s *Store) RecordEpoch(runID int64, rec EpochRecord) error {
	conn, err := s.pool.Take(context.TODO())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT OR REPLACE INTO epochs (run_id, epoch, phase, loss, uas, las, uem, seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []interface{}{runID, rec.Epoch, rec.Phase, rec.Loss, rec.UAS, rec.LAS, rec.UEM, rec.Duration.Seconds()},
	})
	if err != nil {
		return fmt.Errorf("failed to record epoch %d of run %d: %w", rec.Epoch, runID, err)
	}
	return nil
}

// Epochs lists the records of a run by epoch, phases in insertion order.
func (s *Store) Epochs(runID int64) ([]EpochRecord, error) {
	conn, err := s.pool.Take(context.TODO())
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []EpochRecord
	err = sqlitex.Execute(conn, "SELECT epoch, phase, loss, uas, las, uem, seconds FROM epochs WHERE run_id = ? ORDER BY epoch, rowid", &sqlitex.ExecOptions{
		Args: []interface{}{runID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, EpochRecord{
				Epoch:    stmt.ColumnInt(0),
				Phase:    stmt.ColumnText(1),
				Loss:     stmt.ColumnFloat(2),
				UAS:      stmt.ColumnFloat(3),
				LAS:      stmt.ColumnFloat(4),
				UEM:      stmt.ColumnFloat(5),
				Duration: time.Duration(stmt.ColumnFloat(6) * float64(time.Second)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Runs() ([]Run, error) {
	conn, err := s.pool.Take(context.TODO())
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var runs []Run
	err = sqlitex.Execute(conn, "SELECT id, started, train_file, train_md5, config FROM runs ORDER BY id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			started, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1))
			if err != nil {
				return err
			}
			runs = append(runs, Run{
				ID:        stmt.ColumnInt64(0),
				Started:   started,
				TrainFile: stmt.ColumnText(2),
				TrainMD5:  stmt.ColumnText(3),
				Config:    stmt.ColumnText(4),
			})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
