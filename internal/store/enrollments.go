package store

import "context"

const enrollmentCols = `id, student_id, course_id, progress, completed, certificate_issued, created_at, last_accessed_at`

func scanEnrollment(r rowScanner) (Enrollment, error) {
	var e Enrollment
	var created, accessed int64
	if err := r.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.Progress, &e.Completed,
		&e.CertificateIssued, &created, &accessed); err != nil {
		return Enrollment{}, err
	}
	e.CreatedAt = fromUnix(created)
	e.LastAccessedAt = fromUnix(accessed)
	return e, nil
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (`+enrollmentCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.StudentID, e.CourseID, e.Progress, e.Completed, e.CertificateIssued,
		unix(e.CreatedAt), unix(e.LastAccessedAt))
	return wrap("create enrollment", err)
}

func (s *SQLStore) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE id=$1`, id))
	return e, wrap("get enrollment", err)
}

func (s *SQLStore) FindEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE student_id=$1 AND course_id=$2`, studentID, courseID))
	return e, wrap("find enrollment", err)
}

func (s *SQLStore) listEnrollments(ctx context.Context, where string, arg string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentCols+` FROM enrollments WHERE `+where+` ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, wrap("list enrollments", err)
	}
	defer rows.Close()
	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, wrap("scan enrollment", err)
		}
		out = append(out, e)
	}
	return out, wrap("list enrollments", rows.Err())
}

func (s *SQLStore) ListEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	return s.listEnrollments(ctx, "course_id=$1", courseID)
}

func (s *SQLStore) ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	return s.listEnrollments(ctx, "student_id=$1", studentID)
}

func (s *SQLStore) UpdateEnrollment(ctx context.Context, e Enrollment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments
		   SET progress=$1, completed=$2, certificate_issued=$3, last_accessed_at=$4
		 WHERE id=$5`,
		e.Progress, e.Completed, e.CertificateIssued, unix(e.LastAccessedAt), e.ID)
	return mustAffect("update enrollment", res, err)
}

// MarkVideoComplete records a completion once and returns how many distinct
// videos of the enrollment's course are now complete.
func (s *SQLStore) MarkVideoComplete(ctx context.Context, enrollmentID, videoID string) (int, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO video_completions (enrollment_id, video_id, completed_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (enrollment_id, video_id) DO NOTHING`,
		enrollmentID, videoID, unix(now())); err != nil {
		return 0, wrap("mark video complete", err)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM video_completions WHERE enrollment_id=$1`, enrollmentID).Scan(&n)
	return n, wrap("count completions", err)
}
