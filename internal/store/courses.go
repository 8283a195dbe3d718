package store

import (
	"context"
)

const courseCols = `id, instructor_id, title, description, published, created_at, updated_at`

func scanCourse(r rowScanner, extra ...any) (Course, error) {
	var c Course
	var created, updated int64
	dest := append([]any{&c.ID, &c.InstructorID, &c.Title, &c.Description, &c.Published, &created, &updated}, extra...)
	if err := r.Scan(dest...); err != nil {
		return Course{}, err
	}
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	return c, nil
}

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (`+courseCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.InstructorID, c.Title, c.Description, c.Published, unix(c.CreatedAt), unix(c.UpdatedAt))
	return wrap("create course", err)
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx,
		`SELECT `+courseCols+` FROM courses WHERE id=$1`, id))
	return c, wrap("get course", err)
}

// UpdateCourse never changes instructor_id.
func (s *SQLStore) UpdateCourse(ctx context.Context, c Course) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET title=$1, description=$2, published=$3, updated_at=$4 WHERE id=$5`,
		c.Title, c.Description, c.Published, unix(c.UpdatedAt), c.ID)
	return mustAffect("update course", res, err)
}

func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
	return mustAffect("delete course", res, err)
}

// CourseFacts resolves the ownership and visibility attributes of a course
// as seen by viewerID.
func (s *SQLStore) CourseFacts(ctx context.Context, courseID, viewerID string) (CourseFacts, error) {
	f := CourseFacts{CourseID: courseID}
	err := s.db.QueryRowContext(ctx, `
		SELECT c.instructor_id, c.published,
		       EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $2)
		  FROM courses c
		 WHERE c.id = $1`, courseID, viewerID).Scan(&f.InstructorID, &f.Published, &f.Enrolled)
	return f, wrap("course facts", err)
}

type CourseListOpts struct {
	ViewerID string
	All      bool // admins: skip the visibility filter
	Q        string
	Limit    int
	Offset   int
}

// CourseRow is a listed course with the facts needed to authorize it.
type CourseRow struct {
	Course
	Enrolled bool
}

// ListCourses returns published courses plus those the viewer owns or is
// enrolled in, newest first.
func (s *SQLStore) ListCourses(ctx context.Context, o CourseListOpts) ([]CourseRow, error) {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	all := 0
	if o.All {
		all = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.instructor_id, c.title, c.description, c.published, c.created_at, c.updated_at,
		       EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $1)
		  FROM courses c
		 WHERE ($2 = 1
		        OR c.published
		        OR c.instructor_id = $3
		        OR EXISTS (SELECT 1 FROM enrollments e2 WHERE e2.course_id = c.id AND e2.student_id = $4))
		   AND ($5 = '' OR LOWER(c.title) LIKE '%' || LOWER($6) || '%')
		 ORDER BY c.created_at DESC, c.id
		 LIMIT $7 OFFSET $8`,
		o.ViewerID, all, o.ViewerID, o.ViewerID, o.Q, o.Q, o.Limit, o.Offset)
	if err != nil {
		return nil, wrap("list courses", err)
	}
	defer rows.Close()

	out := make([]CourseRow, 0, 16)
	for rows.Next() {
		var cr CourseRow
		c, err := scanCourse(rows, &cr.Enrolled)
		if err != nil {
			return nil, wrap("scan course", err)
		}
		cr.Course = c
		out = append(out, cr)
	}
	return out, wrap("list courses", rows.Err())
}
