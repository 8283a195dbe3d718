package store

import (
	"context"
	"encoding/json"
)

const examCols = `id, course_id, title, description, duration_minutes, passing_score, created_at, updated_at`

func scanExam(r rowScanner) (Exam, error) {
	var e Exam
	var created, updated int64
	if err := r.Scan(&e.ID, &e.CourseID, &e.Title, &e.Description, &e.DurationMinutes,
		&e.PassingScore, &created, &updated); err != nil {
		return Exam{}, err
	}
	e.CreatedAt = fromUnix(created)
	e.UpdatedAt = fromUnix(updated)
	return e, nil
}

// CreateExam fails with ErrDuplicate when the course already has an exam.
func (s *SQLStore) CreateExam(ctx context.Context, e Exam) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (`+examCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.CourseID, e.Title, e.Description, e.DurationMinutes, e.PassingScore,
		unix(e.CreatedAt), unix(e.UpdatedAt))
	return wrap("create exam", err)
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examCols+` FROM exams WHERE id=$1`, id))
	return e, wrap("get exam", err)
}

func (s *SQLStore) GetExamByCourse(ctx context.Context, courseID string) (Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examCols+` FROM exams WHERE course_id=$1`, courseID))
	return e, wrap("get exam by course", err)
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET title=$1, description=$2, duration_minutes=$3, passing_score=$4, updated_at=$5
		 WHERE id=$6`,
		e.Title, e.Description, e.DurationMinutes, e.PassingScore, unix(e.UpdatedAt), e.ID)
	return mustAffect("update exam", res, err)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	return mustAffect("delete exam", res, err)
}

const questionCols = `id, exam_id, text, options_json, correct_index, position, points`

// scanQuestion always loads the answer key; redaction happens in Guarded.
func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var opts string
	var correct int
	if err := r.Scan(&q.ID, &q.ExamID, &q.Text, &opts, &correct, &q.Position, &q.Points); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return Question{}, err
	}
	q.CorrectIndex = &correct
	return q, nil
}

func questionArgs(q Question) (string, int, error) {
	b, err := json.Marshal(q.Options)
	if err != nil {
		return "", 0, err
	}
	c := 0
	if q.CorrectIndex != nil {
		c = *q.CorrectIndex
	}
	return string(b), c, nil
}

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) error {
	opts, correct, err := questionArgs(q)
	if err != nil {
		return wrap("create question", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (`+questionCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		q.ID, q.ExamID, q.Text, opts, correct, q.Position, q.Points)
	return wrap("create question", err)
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id))
	return q, wrap("get question", err)
}

// ListQuestions returns questions in presentation order.
func (s *SQLStore) ListQuestions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE exam_id=$1 ORDER BY position, id`, examID)
	if err != nil {
		return nil, wrap("list questions", err)
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, wrap("scan question", err)
		}
		out = append(out, q)
	}
	return out, wrap("list questions", rows.Err())
}

func (s *SQLStore) NextQuestionPosition(ctx context.Context, examID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM questions WHERE exam_id=$1`, examID).Scan(&n)
	return n, wrap("next question position", err)
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	opts, correct, err := questionArgs(q)
	if err != nil {
		return wrap("update question", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE questions SET text=$1, options_json=$2, correct_index=$3, position=$4, points=$5
		 WHERE id=$6`,
		q.Text, opts, correct, q.Position, q.Points, q.ID)
	return mustAffect("update question", res, err)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	return mustAffect("delete question", res, err)
}

// ExamCourseID resolves the course that owns an exam.
func (s *SQLStore) ExamCourseID(ctx context.Context, examID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT course_id FROM exams WHERE id=$1`, examID).Scan(&id)
	return id, wrap("exam course", err)
}
