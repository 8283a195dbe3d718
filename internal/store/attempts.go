package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mind-engage/mindengage-academy/internal/db"
)

const attemptCols = `id, exam_id, course_id, student_id, answers_json, score, passed, completed, timed_out, started_at, completed_at`

func scanAttempt(r rowScanner) (Attempt, error) {
	var a Attempt
	var answers string
	var started int64
	var completed sql.NullInt64
	if err := r.Scan(&a.ID, &a.ExamID, &a.CourseID, &a.StudentID, &answers, &a.Score, &a.Passed,
		&a.Completed, &a.TimedOut, &started, &completed); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = fromUnix(started)
	if completed.Valid {
		t := fromUnix(completed.Int64)
		a.CompletedAt = &t
	}
	return a, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return wrap("create attempt", err)
	}
	var completed sql.NullInt64
	if a.CompletedAt != nil {
		completed = sql.NullInt64{Int64: unix(*a.CompletedAt), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_attempts (`+attemptCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.ExamID, a.CourseID, a.StudentID, string(answers), a.Score, a.Passed, a.Completed,
		a.TimedOut, unix(a.StartedAt), completed)
	return wrap("create attempt", err)
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM exam_attempts WHERE id=$1`, id))
	return a, wrap("get attempt", err)
}

// ListAttempts filters by course and, when studentID is non-empty, by
// student. Newest first.
func (s *SQLStore) ListAttempts(ctx context.Context, courseID, studentID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptCols+` FROM exam_attempts
		 WHERE course_id=$1 AND ($2 = '' OR student_id=$3)
		 ORDER BY started_at DESC, id`, courseID, studentID, studentID)
	if err != nil {
		return nil, wrap("list attempts", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, wrap("scan attempt", err)
		}
		out = append(out, a)
	}
	return out, wrap("list attempts", rows.Err())
}

const certificateCols = `id, student_id, course_id, exam_id, score, issued_at`

func scanCertificate(r rowScanner) (Certificate, error) {
	var c Certificate
	var issued int64
	if err := r.Scan(&c.ID, &c.StudentID, &c.CourseID, &c.ExamID, &c.Score, &issued); err != nil {
		return Certificate{}, err
	}
	c.IssuedAt = fromUnix(issued)
	return c, nil
}

// CreateCertificate inserts the certificate and flags the matching
// enrollment in one transaction. A second certificate for the same student
// and course fails with ErrDuplicate.
func (s *SQLStore) CreateCertificate(ctx context.Context, c Certificate) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO certificates (`+certificateCols+`) VALUES ($1,$2,$3,$4,$5,$6)`,
			c.ID, c.StudentID, c.CourseID, c.ExamID, c.Score, unix(c.IssuedAt)); err != nil {
			return wrap("create certificate", err)
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET certificate_issued=$1 WHERE student_id=$2 AND course_id=$3`,
			true, c.StudentID, c.CourseID)
		return wrap("flag enrollment", err)
	})
}

func (s *SQLStore) FindCertificate(ctx context.Context, studentID, courseID string) (Certificate, error) {
	c, err := scanCertificate(s.db.QueryRowContext(ctx,
		`SELECT `+certificateCols+` FROM certificates WHERE student_id=$1 AND course_id=$2`, studentID, courseID))
	return c, wrap("find certificate", err)
}

func (s *SQLStore) ListCertificates(ctx context.Context, studentID string) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+certificateCols+` FROM certificates WHERE student_id=$1 ORDER BY issued_at DESC, id`, studentID)
	if err != nil {
		return nil, wrap("list certificates", err)
	}
	defer rows.Close()
	var out []Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, wrap("scan certificate", err)
		}
		out = append(out, c)
	}
	return out, wrap("list certificates", rows.Err())
}

func (s *SQLStore) HasPassingAttempt(ctx context.Context, studentID, courseID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM exam_attempts
		                WHERE student_id=$1 AND course_id=$2 AND passed AND completed)`,
		studentID, courseID).Scan(&ok)
	return ok, wrap("passing attempt", err)
}
