// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PgStore Store的postgres实现。锁等待由lock_timeout限定，
// 超时返回ErrTxTimeout，调用方按可重试错误处理。
type PgStore struct {
	db *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: db}
}

// querier *sql.DB和*sql.Tx的公共查询面
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InTx 在单个事务内执行fn，任何错误整体回滚
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback()

	// 锁等待上限：超时作为可重试错误上抛，而不是无限挂起
	if _, err := dbTx.ExecContext(ctx, `SET LOCAL lock_timeout = '5s'`); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	if err := fn(&pgTx{q: dbTx}); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return fmt.Errorf("%w: %v", ErrTxTimeout, err)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) LockTeam(ctx context.Context, id int64) (*Team, error) {
	return scanTeam(t.q.QueryRowContext(ctx,
		`SELECT id, name, points, COALESCE(captain_id, 0) FROM teams WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockUser(ctx context.Context, id int64) (*User, error) {
	return scanUser(t.q.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(display_name, username), team_id, points, is_staff, is_bot
		 FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) LockChallenge(ctx context.Context, id int64) (*Challenge, error) {
	ch, err := scanChallenge(t.q.QueryRowContext(ctx,
		challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := loadUnlockedBy(ctx, t.q, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (t *pgTx) ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error) {
	return existsCorrectSolve(ctx, t.q, challengeID, teamID)
}

func (t *pgTx) CountAttempts(ctx context.Context, challengeID, teamID int64) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE challenge_id = $1 AND team_id = $2`,
		challengeID, teamID).Scan(&count)
	return count, err
}

func (t *pgTx) CountCorrectSolves(ctx context.Context, challengeID int64) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE challenge_id = $1 AND correct = true`,
		challengeID).Scan(&count)
	return count, err
}

func (t *pgTx) SolvedChallengeIDs(ctx context.Context, teamID int64) (map[int64]bool, error) {
	return solvedChallengeIDs(ctx, t.q, teamID)
}

func (t *pgTx) InsertSolve(ctx context.Context, s *Solve) error {
	return t.q.QueryRowContext(ctx, `
		INSERT INTO submissions (challenge_id, team_id, user_id, flag, correct, points, ip_address, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		s.ChallengeID, s.TeamID, s.UserID, s.Flag, s.Correct, s.Points, s.IPAddress, s.SubmittedAt).Scan(&s.ID)
}

func (t *pgTx) AddTeamPoints(ctx context.Context, teamID int64, points int) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE teams SET points = points + $2 WHERE id = $1`, teamID, points)
	return err
}

func (t *pgTx) AddUserPoints(ctx context.Context, userID int64, points int) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`, userID, points)
	return err
}

func (t *pgTx) SetFirstBlood(ctx context.Context, challengeID, userID int64) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE challenges SET first_blood_id = $2 WHERE id = $1 AND first_blood_id IS NULL`,
		challengeID, userID)
	return err
}

func (t *pgTx) TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error) {
	return teamFlag(ctx, t.q, teamID, challengeID)
}

// ========== 只读路径 ==========

func (s *PgStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(display_name, username), team_id, points, is_staff, is_bot
		 FROM users WHERE id = $1`, id))
}

func (s *PgStore) GetTeam(ctx context.Context, id int64) (*Team, error) {
	return scanTeam(s.db.QueryRowContext(ctx,
		`SELECT id, name, points, COALESCE(captain_id, 0) FROM teams WHERE id = $1`, id))
}

func (s *PgStore) GetChallenge(ctx context.Context, id int64) (*Challenge, error) {
	ch, err := scanChallenge(s.db.QueryRowContext(ctx,
		challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadUnlockedBy(ctx, s.db, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *PgStore) ExistsCorrectSolve(ctx context.Context, challengeID, teamID int64) (bool, error) {
	return existsCorrectSolve(ctx, s.db, challengeID, teamID)
}

func (s *PgStore) TeamFlag(ctx context.Context, teamID, challengeID int64) (string, bool, error) {
	return teamFlag(ctx, s.db, teamID, challengeID)
}

// LastIncorrectSeconds 队伍最近一次错误提交距今的秒数，使用数据库时间计算避免时区问题
func (s *PgStore) LastIncorrectSeconds(ctx context.Context, teamID int64) (float64, error) {
	var elapsed float64
	err := s.db.QueryRowContext(ctx, `
		SELECT EXTRACT(EPOCH FROM (NOW() - submitted_at)) FROM submissions
		WHERE team_id = $1 AND correct = false
		ORDER BY submitted_at DESC LIMIT 1`, teamID).Scan(&elapsed)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return elapsed, nil
}

// ========== 扫描与公共查询 ==========

const challengeColumns = `SELECT id, title, category, flag_type, points_type, flag_config, points_config,
	auto_unlock, release_time, first_blood_id, COALESCE(post_score_explanation, '')`

func scanTeam(row *sql.Row) (*Team, error) {
	var t Team
	if err := row.Scan(&t.ID, &t.Name, &t.Points, &t.CaptainID); err != nil {
		return nil, mapNoRows(err)
	}
	return &t, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var teamID sql.NullInt64
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &teamID, &u.Points, &u.IsStaff, &u.IsBot); err != nil {
		return nil, mapNoRows(err)
	}
	if teamID.Valid {
		u.TeamID = &teamID.Int64
	}
	return &u, nil
}

func scanChallenge(row *sql.Row) (*Challenge, error) {
	var ch Challenge
	var firstBlood sql.NullInt64
	if err := row.Scan(&ch.ID, &ch.Title, &ch.Category, &ch.FlagType, &ch.PointsType,
		&ch.FlagConfig, &ch.PointsConfig, &ch.AutoUnlock, &ch.ReleaseTime,
		&firstBlood, &ch.PostScoreExplanation); err != nil {
		return nil, mapNoRows(err)
	}
	if firstBlood.Valid {
		ch.FirstBloodID = &firstBlood.Int64
	}
	return &ch, nil
}

func loadUnlockedBy(ctx context.Context, q querier, ch *Challenge) error {
	rows, err := q.QueryContext(ctx,
		`SELECT unlocked_by_id FROM challenge_unlocks WHERE challenge_id = $1`, ch.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ch.UnlockedBy = append(ch.UnlockedBy, id)
	}
	return rows.Err()
}

func existsCorrectSolve(ctx context.Context, q querier, challengeID, teamID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM submissions WHERE challenge_id = $1 AND team_id = $2 AND correct = true)`,
		challengeID, teamID).Scan(&exists)
	return exists, err
}

func solvedChallengeIDs(ctx context.Context, q querier, teamID int64) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT challenge_id FROM submissions WHERE team_id = $1 AND correct = true`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	solved := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		solved[id] = true
	}
	return solved, rows.Err()
}

func teamFlag(ctx context.Context, q querier, teamID, challengeID int64) (string, bool, error) {
	var flag string
	err := q.QueryRowContext(ctx,
		`SELECT flag FROM team_challenge_flags WHERE team_id = $1 AND challenge_id = $2`,
		teamID, challengeID).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return flag, true, nil
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
