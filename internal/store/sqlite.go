// 包 store 提供最新一次报表的 SQLite 镜像（modernc.org/sqlite，纯 Go 实现）。
// 每次成功发布后整体替换，只保留一份，不做历史趋势存储。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go-crtools/internal/model"
)

// SQLite 封装 *sql.DB。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clan (
            tag TEXT PRIMARY KEY,
            name TEXT,
            description TEXT,
            members INTEGER,
            wars INTEGER,
            updated_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            tag TEXT PRIMARY KEY,
            position INTEGER,
            name TEXT,
            role TEXT,
            trophies INTEGER,
            donations INTEGER,
            danger BOOLEAN,
            leadership BOOLEAN,
            warlog TEXT
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// Reset 清空数据表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clan`); err != nil {
		return fmt.Errorf("delete clan: %w", err)
	}
	return nil
}

// SaveReport 在同一事务内替换上一份报表。
func (s *SQLite) SaveReport(ctx context.Context, rep model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	for _, q := range []string{`DELETE FROM members`, `DELETE FROM clan`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear previous report: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO clan(tag, name, description, members, wars, updated_at) VALUES(?,?,?,?,?,?)`,
		rep.Tag, rep.Name, rep.Description, len(rep.Members), rep.WarCount, nowOr(rep.GeneratedAt)); err != nil {
		return fmt.Errorf("insert clan %s: %w", rep.Tag, err)
	}
	for i, m := range rep.Members {
		wl, err := json.Marshal(m.Warlog)
		if err != nil {
			return fmt.Errorf("encode warlog %s: %w", m.Tag, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO members(tag, position, name, role, trophies, donations, danger, leadership, warlog)
            VALUES(?,?,?,?,?,?,?,?,?)`,
			m.Tag, i, m.Name, m.Role, m.Trophies, m.Donations, m.Danger, m.Leadership, string(wl)); err != nil {
			return fmt.Errorf("insert member %s: %w", m.Tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListMembers 按原始顺序返回已保存的成员行。
func (s *SQLite) ListMembers(ctx context.Context) ([]model.MemberRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag, name, role, trophies, donations, danger, leadership, warlog FROM members ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	var out []model.MemberRow
	for rows.Next() {
		var m model.MemberRow
		var wl string
		if err := rows.Scan(&m.Tag, &m.Name, &m.Role, &m.Trophies, &m.Donations, &m.Danger, &m.Leadership, &wl); err != nil {
			return nil, fmt.Errorf("scan members: %w", err)
		}
		if err := json.Unmarshal([]byte(wl), &m.Warlog); err != nil {
			return nil, fmt.Errorf("decode warlog %s: %w", m.Tag, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// LatestClan 返回最近保存的部落概要；没有记录时 ok=false。
func (s *SQLite) LatestClan(ctx context.Context) (model.Snapshot, bool, error) {
	var c model.Snapshot
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT tag, name, description, members, wars, updated_at FROM clan LIMIT 1`).
		Scan(&c.Tag, &c.Name, &c.Description, &c.Members, &c.Wars, &updated)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("query clan: %w", err)
	}
	if updated.Valid {
		c.UpdatedAt = updated.Time
	}
	return c, true, nil
}

// nowOr 未设置生成时间时兜底为当前时间。
func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
