package store

import (
	"fmt"
	"time"
)

// Session kinds recorded by the timer.
const (
	KindFocus = "focus" // plain countdown
	KindWork  = "work"  // pomodoro work block
	KindBreak = "break" // pomodoro break block
)

// Session is one finished (or abandoned) timer run.
type Session struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Duration  int       `json:"durationSeconds"`
	Completed bool      `json:"completed"`
}

// Stats aggregates completed sessions.
type Stats struct {
	Sessions      int `json:"sessions"`
	CompletedWork int `json:"completedWork"`
	FocusSeconds  int `json:"focusSeconds"` // focus + work
	WorkSeconds   int `json:"workSeconds"`
	BreakSeconds  int `json:"breakSeconds"`
}

// InsertSession records a session and returns its id.
func (s *Store) InsertSession(sess Session) (int64, error) {
	switch sess.Kind {
	case KindFocus, KindWork, KindBreak:
	default:
		return 0, fmt.Errorf("unknown session kind %q", sess.Kind)
	}
	if sess.Duration < 0 {
		return 0, fmt.Errorf("negative session duration %d", sess.Duration)
	}
	completed := 0
	if sess.Completed {
		completed = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO sessions(kind, started_at, ended_at, duration_s, completed) VALUES(?, ?, ?, ?, ?)`,
		sess.Kind, sess.StartedAt.Unix(), sess.EndedAt.Unix(), sess.Duration, completed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// ListSessions returns up to limit sessions, newest first. A limit <= 0
// returns all.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, kind, started_at, ended_at, duration_s, completed
		 FROM sessions ORDER BY ended_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess           Session
			started, ended int64
			completed      int
		)
		if err := rows.Scan(&sess.ID, &sess.Kind, &started, &ended, &sess.Duration, &completed); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(started, 0).UTC()
		sess.EndedAt = time.Unix(ended, 0).UTC()
		sess.Completed = completed != 0
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SessionStats totals completed sessions.
func (s *Store) SessionStats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'work' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind IN ('focus', 'work') THEN duration_s ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'work' THEN duration_s ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'break' THEN duration_s ELSE 0 END), 0)
		 FROM sessions WHERE completed = 1`,
	).Scan(&st.Sessions, &st.CompletedWork, &st.FocusSeconds, &st.WorkSeconds, &st.BreakSeconds)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	return st, nil
}
