package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/rusenback/perfverse/internal/model"

	_ "modernc.org/sqlite"
)

const (
	queueSize = 1000
	batchSize = 50
)

// DataPoint is a stored row as read back from the database.
type DataPoint struct {
	ContainerID   string
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
	UsedMemory    int64
	MemoryLimit   uint64
	NetworkRx     uint64
	NetworkTx     uint64
}

// Storage keeps a queryable copy of the exporter rows next to the CSV file.
type Storage struct {
	db        *sql.DB
	writeChan chan model.Row
	closeChan chan struct{}
	done      sync.WaitGroup
	flushEach time.Duration
	closeOnce sync.Once
}

// NewStorage opens (or creates) the database at path.
func NewStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "storage: failed to create data directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "storage: failed to open database")
	}
	// One writer goroutine; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Storage{
		db:        db,
		writeChan: make(chan model.Row, queueSize),
		closeChan: make(chan struct{}),
		flushEach: 5 * time.Second,
	}

	s.done.Add(1)
	go s.writer()

	return s, nil
}

// createTables creates the database schema
func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS container_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		container_id TEXT NOT NULL,
		container_name TEXT NOT NULL,
		read_at INTEGER NOT NULL,
		cpu_percent REAL,
		memory_percent REAL,
		used_memory INTEGER,
		memory_limit INTEGER,
		network_rx INTEGER,
		network_tx INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_container_time
	ON container_stats(container_name, read_at);
	`

	_, err := db.Exec(schema)
	return errors.Wrap(err, "storage: failed to create schema")
}

// WriteRow queues a row for writing. It never blocks: when the queue is full
// the row is dropped, the CSV file remains the complete record.
func (s *Storage) WriteRow(row model.Row) error {
	select {
	case s.writeChan <- row:
	default:
		log.WithField("container", row.ContainerName).Debug("storage queue full, dropping row")
	}
	return nil
}

// writer runs in background and batch writes to database
func (s *Storage) writer() {
	defer s.done.Done()

	buffer := make([]model.Row, 0, batchSize*2)
	ticker := time.NewTicker(s.flushEach)
	defer ticker.Stop()

	for {
		select {
		case row := <-s.writeChan:
			buffer = append(buffer, row)
			if len(buffer) >= batchSize {
				s.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C:
			if len(buffer) > 0 {
				s.batchWrite(buffer)
				buffer = buffer[:0]
			}

		case <-s.closeChan:
			// Drain whatever was queued before Close.
		drain:
			for {
				select {
				case row := <-s.writeChan:
					buffer = append(buffer, row)
				default:
					break drain
				}
			}
			if len(buffer) > 0 {
				s.batchWrite(buffer)
			}
			return
		}
	}
}

// batchWrite writes a batch of rows in one transaction.
func (s *Storage) batchWrite(rows []model.Row) {
	if err := s.insert(rows); err != nil {
		log.WithField("error", err).WithField("rows", len(rows)).Warn("failed to write rows to sqlite")
	}
}

func (s *Storage) insert(rows []model.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "storage: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO container_stats
		(container_id, container_name, read_at, cpu_percent, memory_percent,
		 used_memory, memory_limit, network_rx, network_tx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "storage: prepare")
	}
	defer stmt.Close()

	for _, row := range rows {
		readAt := row.ReadAt
		if readAt.IsZero() {
			readAt = time.Now()
		}
		_, err := stmt.Exec(
			row.ContainerID,
			row.ContainerName,
			readAt.UnixNano(),
			row.CPUPercent,
			row.MemoryPercent,
			row.UsedMemory,
			int64(row.MemoryLimit),
			int64(row.NetworkInput),
			int64(row.NetworkOutput),
		)
		if err != nil {
			return errors.Wrap(err, "storage: insert")
		}
	}

	return errors.Wrap(tx.Commit(), "storage: commit")
}

// Query returns the stored rows of a container in time order.
func (s *Storage) Query(containerName string) ([]DataPoint, error) {
	rows, err := s.db.Query(`
		SELECT container_id, read_at, cpu_percent, memory_percent,
		       used_memory, memory_limit, network_rx, network_tx
		FROM container_stats
		WHERE container_name = ?
		ORDER BY read_at ASC, id ASC
	`, containerName)
	if err != nil {
		return nil, errors.Wrap(err, "storage: query")
	}
	defer rows.Close()

	var points []DataPoint
	for rows.Next() {
		var p DataPoint
		var readAt, limit, rx, tx int64
		if err := rows.Scan(&p.ContainerID, &readAt, &p.CPUPercent, &p.MemoryPercent,
			&p.UsedMemory, &limit, &rx, &tx); err != nil {
			return nil, errors.Wrap(err, "storage: scan")
		}
		p.Timestamp = time.Unix(0, readAt)
		p.MemoryLimit = uint64(limit)
		p.NetworkRx = uint64(rx)
		p.NetworkTx = uint64(tx)
		points = append(points, p)
	}

	return points, rows.Err()
}

// Close flushes queued rows and closes the database.
func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
	})
	s.done.Wait()
	return s.db.Close()
}
