package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/config"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS compliance_runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP,
	requested     INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	error_message TEXT NOT NULL DEFAULT '',
	collected     INTEGER NOT NULL DEFAULT 0,
	data_path     TEXT NOT NULL DEFAULT '',
	analysis_path TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS compliance_alerts (
	run_id          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	alert_id        TEXT NOT NULL,
	type_of_alert   TEXT NOT NULL,
	status          TEXT NOT NULL,
	assigned_to     TEXT NOT NULL,
	creation_date   TEXT NOT NULL,
	resolution_date TEXT,
	impact_level    TEXT NOT NULL,
	priority        INTEGER NOT NULL,
	source          TEXT NOT NULL,
	description     TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE TABLE IF NOT EXISTS compliance_aggregates (
	run_id     TEXT NOT NULL,
	position   INTEGER NOT NULL,
	category   TEXT NOT NULL,
	item       TEXT NOT NULL,
	count      INTEGER NOT NULL,
	percentage TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_compliance_runs_started_at ON compliance_runs(started_at);
`

// ErrRunNotFound 指定的运行记录不存在
var ErrRunNotFound = errors.New("run not found")

// Storage 运行历史存储
type Storage struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewStorage 按配置打开数据库并初始化表结构
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	var dsn string
	switch cfg.Driver {
	case "postgres":
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	case "sqlite3":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite3 path is missing")
		}
		dsn = cfg.Path
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db, driver: cfg.Driver, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun 创建本次运行记录，返回运行 ID
func (s *Storage) CreateRun(ctx context.Context, requested int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO compliance_runs (id, started_at, requested) VALUES (?, ?, ?)`),
		id, s.now().UTC(), requested)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun 记录采集数量和输出文件，状态置为 completed
func (s *Storage) FinishRun(ctx context.Context, runID string, collected int, dataPath, analysisPath string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE compliance_runs SET finished_at = ?, status = ?, collected = ?, data_path = ?, analysis_path = ? WHERE id = ?`),
		s.now().UTC(), model.RunCompleted, collected, dataPath, analysisPath, runID)
	if err != nil {
		return err
	}
	return checkAffected(res, runID)
}

// FailRun 运行中途失败时记录错误，状态置为 failed
func (s *Storage) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = removeNullBytes(runErr.Error())
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE compliance_runs SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`),
		s.now().UTC(), model.RunFailed, msg, runID)
	if err != nil {
		return err
	}
	return checkAffected(res, runID)
}

func checkAffected(res sql.Result, runID string) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// SaveAlerts 保存告警明细
func (s *Storage) SaveAlerts(ctx context.Context, runID string, records []model.AlertRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO compliance_alerts
			(run_id, position, alert_id, type_of_alert, status, assigned_to, creation_date,
			 resolution_date, impact_level, priority, source, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range records {
			var resolution sql.NullString
			if r.ResolutionDate != nil {
				resolution = sql.NullString{String: model.FormatDate(*r.ResolutionDate), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, i, r.AlertID, r.TypeOfAlert, r.Status, r.AssignedTo,
				model.FormatDate(r.CreationDate), resolution, r.ImpactLevel, r.Priority, r.Source,
				removeNullBytes(r.Description)); err != nil {
				return fmt.Errorf("insert alert %s: %w", r.AlertID, err)
			}
		}
		return nil
	})
}

// SaveAggregates 保存汇总结果
func (s *Storage) SaveAggregates(ctx context.Context, runID string, rows []model.AggregateRow) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO compliance_aggregates
			(run_id, position, category, item, count, percentage) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range rows {
			if _, err := stmt.ExecContext(ctx, runID, i, string(r.Category), r.Item, r.Count, r.Percentage); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAlerts 按原始顺序读取某次运行的告警
func (s *Storage) LoadAlerts(ctx context.Context, runID string) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT alert_id, type_of_alert, status, assigned_to,
		creation_date, resolution_date, impact_level, priority, source, description
		FROM compliance_alerts WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var (
			r          model.AlertRecord
			creation   string
			resolution sql.NullString
		)
		if err := rows.Scan(&r.AlertID, &r.TypeOfAlert, &r.Status, &r.AssignedTo, &creation, &resolution,
			&r.ImpactLevel, &r.Priority, &r.Source, &r.Description); err != nil {
			return nil, err
		}
		if r.CreationDate, err = model.ParseDate(creation); err != nil {
			return nil, err
		}
		if resolution.Valid {
			d, err := model.ParseDate(resolution.String)
			if err != nil {
				return nil, err
			}
			r.ResolutionDate = &d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadAggregates 按原始顺序读取某次运行的汇总
func (s *Storage) LoadAggregates(ctx context.Context, runID string) ([]model.AggregateRow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT category, item, count, percentage
		FROM compliance_aggregates WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AggregateRow
	for rows.Next() {
		var r model.AggregateRow
		var cat string
		if err := rows.Scan(&cat, &r.Item, &r.Count, &r.Percentage); err != nil {
			return nil, err
		}
		r.Category = model.Category(cat)
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `id, started_at, finished_at, status, error_message, requested, collected, data_path, analysis_path`

// ListRuns 最近的运行记录，按开始时间倒序
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+runColumns+`
		FROM compliance_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun 读取单次运行记录，不存在时返回 ErrRunNotFound
func (s *Storage) GetRun(ctx context.Context, runID string) (model.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM compliance_runs WHERE id = ?`), runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (model.RunSummary, error) {
	var r model.RunSummary
	var finished sql.NullTime
	if err := sc.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &r.Error,
		&r.Requested, &r.Collected, &r.DataPath, &r.AnalysisPath); err != nil {
		return model.RunSummary{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

// rebind 将 ? 占位符转换为 postgres 的 $n
func (s *Storage) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// PostgreSQL 文本字段不支持 NULL 字节
func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
