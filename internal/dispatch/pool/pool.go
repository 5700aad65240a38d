package pool

import (
	"context"
	"time"

	"rivoj/internal/common/db"
	appErr "rivoj/pkg/errors"
)

// HeartbeatInfo is the worker self-report applied on each heartbeat.
type HeartbeatInfo struct {
	Hostname       string
	IP             string
	ServiceURL     string
	JudgerVersion  string
	CPUCoreCount   int
	CPUUsagePct    float64
	MemoryUsagePct float64
}

// Selector is the slot-accounting surface the dispatcher depends on.
type Selector interface {
	// Select picks the lowest-loaded selectable worker and reserves one
	// slot on it. It returns (nil, nil) when no worker is selectable.
	Select(ctx context.Context) (*Worker, error)
	// Release returns one reserved slot. It must be called exactly once
	// per successful Select, on every path including failures.
	Release(ctx context.Context, workerID int64) error
}

// Pool tracks registered workers in the shared database so that multiple
// dispatcher instances account slots against the same rows.
type Pool struct {
	db  db.Database
	now func() time.Time
}

func NewPool(database db.Database) *Pool {
	return &Pool{db: database, now: time.Now}
}

const workerColumns = "id, hostname, ip, service_url, judger_version, cpu_core_count, " +
	"cpu_usage, memory_usage, last_heartbeat, in_flight_count, is_disabled"

// RegisterOrRefresh upserts a worker row by hostname and stamps the
// heartbeat. It reports whether this was a first-time registration, which
// the caller uses to attempt a pending-queue drain.
func (p *Pool) RegisterOrRefresh(ctx context.Context, info HeartbeatInfo) (bool, error) {
	if info.Hostname == "" {
		return false, appErr.New(appErr.HeartbeatRejected).WithMessage("hostname is required")
	}
	res, err := p.db.Exec(ctx,
		`INSERT INTO judge_workers
			(hostname, ip, service_url, judger_version, cpu_core_count, cpu_usage, memory_usage, last_heartbeat, in_flight_count, is_disabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
		 ON DUPLICATE KEY UPDATE
			ip = VALUES(ip), service_url = VALUES(service_url), judger_version = VALUES(judger_version),
			cpu_core_count = VALUES(cpu_core_count), cpu_usage = VALUES(cpu_usage),
			memory_usage = VALUES(memory_usage), last_heartbeat = VALUES(last_heartbeat)`,
		info.Hostname, info.IP, info.ServiceURL, info.JudgerVersion,
		info.CPUCoreCount, info.CPUUsagePct, info.MemoryUsagePct, p.now().UTC())
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "upsert worker failed")
	}
	// MySQL reports 1 affected row for an insert and 2 for an update.
	affected, err := res.RowsAffected()
	if err != nil {
		return false, appErr.Wrapf(err, appErr.DatabaseError, "read affected rows failed")
	}
	return affected == 1, nil
}

// Select implements Selector. The row lock, the selectability check and the
// in-flight increment share one short transaction so concurrent dispatchers
// can never reserve the same last slot twice.
func (p *Pool) Select(ctx context.Context) (*Worker, error) {
	var picked *Worker
	err := p.db.Transaction(ctx, func(tx db.Transaction) error {
		now := p.now().UTC()
		row := tx.QueryRow(ctx,
			"SELECT "+workerColumns+` FROM judge_workers
			 WHERE is_disabled = 0 AND last_heartbeat >= ? AND in_flight_count <= 2 * cpu_core_count
			 ORDER BY in_flight_count ASC, id ASC
			 LIMIT 1 FOR UPDATE`,
			now.Add(-HealthWindow))
		w, err := scanWorker(row)
		if err != nil {
			if db.IsNoRows(err) {
				return nil
			}
			return appErr.Wrapf(err, appErr.DatabaseError, "select worker failed")
		}
		if _, err := tx.Exec(ctx,
			"UPDATE judge_workers SET in_flight_count = in_flight_count + 1 WHERE id = ?", w.ID); err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "reserve worker slot failed")
		}
		w.InFlightCount++
		picked = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// Release implements Selector. The row is re-fetched in its own transaction
// rather than held across the judge RPC, which may take seconds.
func (p *Pool) Release(ctx context.Context, workerID int64) error {
	return p.db.Transaction(ctx, func(tx db.Transaction) error {
		row := tx.QueryRow(ctx,
			"SELECT in_flight_count FROM judge_workers WHERE id = ? FOR UPDATE", workerID)
		var inFlight int
		if err := row.Scan(&inFlight); err != nil {
			if db.IsNoRows(err) {
				return appErr.New(appErr.WorkerNotFound).WithDetail("worker_id", workerID)
			}
			return appErr.Wrapf(err, appErr.DatabaseError, "fetch worker failed")
		}
		if inFlight <= 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			"UPDATE judge_workers SET in_flight_count = in_flight_count - 1 WHERE id = ?", workerID); err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "release worker slot failed")
		}
		return nil
	})
}

// SetDisabled toggles the administrator kill switch. It reports whether the
// worker transitioned disabled to enabled, which the caller uses to attempt
// a pending-queue drain.
func (p *Pool) SetDisabled(ctx context.Context, workerID int64, disabled bool) (bool, error) {
	var reenabled bool
	err := p.db.Transaction(ctx, func(tx db.Transaction) error {
		row := tx.QueryRow(ctx,
			"SELECT is_disabled FROM judge_workers WHERE id = ? FOR UPDATE", workerID)
		var current bool
		if err := row.Scan(&current); err != nil {
			if db.IsNoRows(err) {
				return appErr.New(appErr.WorkerNotFound).WithDetail("worker_id", workerID)
			}
			return appErr.Wrapf(err, appErr.DatabaseError, "fetch worker failed")
		}
		if current == disabled {
			return nil
		}
		if _, err := tx.Exec(ctx,
			"UPDATE judge_workers SET is_disabled = ? WHERE id = ?", disabled, workerID); err != nil {
			return appErr.Wrapf(err, appErr.DatabaseError, "update worker failed")
		}
		reenabled = current && !disabled
		return nil
	})
	if err != nil {
		return false, err
	}
	return reenabled, nil
}

// List returns all registered workers for the admin API.
func (p *Pool) List(ctx context.Context) ([]Worker, error) {
	rows, err := p.db.Query(ctx, "SELECT "+workerColumns+" FROM judge_workers ORDER BY id ASC")
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list workers failed")
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		w, err := scanWorkerRows(rows)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan worker failed")
		}
		workers = append(workers, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "iterate workers failed")
	}
	return workers, nil
}

func scanWorker(row db.Row) (*Worker, error) {
	var w Worker
	if err := row.Scan(&w.ID, &w.Hostname, &w.IP, &w.ServiceURL, &w.JudgerVersion,
		&w.CPUCoreCount, &w.CPUUsagePct, &w.MemoryUsagePct, &w.LastHeartbeat,
		&w.InFlightCount, &w.Disabled); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanWorkerRows(rows db.Rows) (*Worker, error) {
	var w Worker
	if err := rows.Scan(&w.ID, &w.Hostname, &w.IP, &w.ServiceURL, &w.JudgerVersion,
		&w.CPUCoreCount, &w.CPUUsagePct, &w.MemoryUsagePct, &w.LastHeartbeat,
		&w.InFlightCount, &w.Disabled); err != nil {
		return nil, err
	}
	return &w, nil
}
