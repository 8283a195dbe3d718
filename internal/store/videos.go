package store

import "context"

const videoCols = `id, course_id, title, url, position, duration_sec, created_at`

func scanVideo(r rowScanner) (Video, error) {
	var v Video
	var created int64
	if err := r.Scan(&v.ID, &v.CourseID, &v.Title, &v.URL, &v.Position, &v.DurationSec, &created); err != nil {
		return Video{}, err
	}
	v.CreatedAt = fromUnix(created)
	return v, nil
}

func (s *SQLStore) CreateVideo(ctx context.Context, v Video) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (`+videoCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.CourseID, v.Title, v.URL, v.Position, v.DurationSec, unix(v.CreatedAt))
	return wrap("create video", err)
}

func (s *SQLStore) GetVideo(ctx context.Context, id string) (Video, error) {
	v, err := scanVideo(s.db.QueryRowContext(ctx, `SELECT `+videoCols+` FROM videos WHERE id=$1`, id))
	return v, wrap("get video", err)
}

func (s *SQLStore) ListVideos(ctx context.Context, courseID string) ([]Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoCols+` FROM videos WHERE course_id=$1 ORDER BY position, id`, courseID)
	if err != nil {
		return nil, wrap("list videos", err)
	}
	defer rows.Close()
	var out []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, wrap("scan video", err)
		}
		out = append(out, v)
	}
	return out, wrap("list videos", rows.Err())
}

func (s *SQLStore) NextVideoPosition(ctx context.Context, courseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM videos WHERE course_id=$1`, courseID).Scan(&n)
	return n, wrap("next video position", err)
}

func (s *SQLStore) UpdateVideo(ctx context.Context, v Video) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET title=$1, url=$2, position=$3, duration_sec=$4 WHERE id=$5`,
		v.Title, v.URL, v.Position, v.DurationSec, v.ID)
	return mustAffect("update video", res, err)
}

func (s *SQLStore) DeleteVideo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id=$1`, id)
	return mustAffect("delete video", res, err)
}

func (s *SQLStore) CountVideos(ctx context.Context, courseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos WHERE course_id=$1`, courseID).Scan(&n)
	return n, wrap("count videos", err)
}
