package course

import (
	"context"
	"strings"

	"github.com/mind-engage/mindengage-academy/internal/rbac"
	"github.com/mind-engage/mindengage-academy/internal/store"
)

// Repository is the guarded store as course management sees it.
type Repository interface {
	CreateCourse(ctx context.Context, actor rbac.Actor, c store.Course) (store.Course, error)
	Course(ctx context.Context, actor rbac.Actor, id string) (store.Course, error)
	UpdateCourse(ctx context.Context, actor rbac.Actor, c store.Course) (store.Course, error)
	DeleteCourse(ctx context.Context, actor rbac.Actor, id string) error
	Courses(ctx context.Context, actor rbac.Actor, q string, limit, offset int) ([]store.Course, error)

	CreateVideo(ctx context.Context, actor rbac.Actor, v store.Video) (store.Video, error)
	Video(ctx context.Context, actor rbac.Actor, id string) (store.Video, error)
	Videos(ctx context.Context, actor rbac.Actor, courseID string) ([]store.Video, error)
	UpdateVideo(ctx context.Context, actor rbac.Actor, v store.Video) (store.Video, error)
	DeleteVideo(ctx context.Context, actor rbac.Actor, id string) error

	Enroll(ctx context.Context, actor rbac.Actor, courseID string) (store.Enrollment, bool, error)
	CourseEnrollments(ctx context.Context, actor rbac.Actor, courseID string) ([]store.Enrollment, error)
	MyEnrollments(ctx context.Context, actor rbac.Actor) ([]store.Enrollment, error)
	RecordVideoCompletion(ctx context.Context, actor rbac.Actor, videoID string) (store.Enrollment, error)
}

var _ Repository = (*store.Guarded)(nil)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// CourseInput carries the editable fields of a course. Nil fields are left
// unchanged on update.
type CourseInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Published   *bool   `json:"published,omitempty"`
}

func (in CourseInput) apply(c *store.Course) {
	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.Published != nil {
		c.Published = *in.Published
	}
}

func (s *Service) Create(ctx context.Context, actor rbac.Actor, in CourseInput) (store.Course, error) {
	var c store.Course
	in.apply(&c)
	return s.repo.CreateCourse(ctx, actor, c)
}

func (s *Service) Get(ctx context.Context, actor rbac.Actor, id string) (store.Course, error) {
	return s.repo.Course(ctx, actor, id)
}

func (s *Service) Update(ctx context.Context, actor rbac.Actor, id string, in CourseInput) (store.Course, error) {
	c, err := s.repo.Course(ctx, actor, id)
	if err != nil {
		return store.Course{}, err
	}
	in.apply(&c)
	return s.repo.UpdateCourse(ctx, actor, c)
}

func (s *Service) Delete(ctx context.Context, actor rbac.Actor, id string) error {
	return s.repo.DeleteCourse(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, actor rbac.Actor, q string, limit, offset int) ([]store.Course, error) {
	return s.repo.Courses(ctx, actor, q, limit, offset)
}

// VideoInput is an authored video. Position 0 appends.
type VideoInput struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Position    int    `json:"position"`
	DurationSec int    `json:"duration_sec"`
}

func (in VideoInput) video() (store.Video, error) {
	u, _, err := ClassifyVideoURL(in.URL)
	if err != nil {
		return store.Video{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = u
	}
	dur := in.DurationSec
	if dur < 0 {
		dur = 0
	}
	return store.Video{Title: title, URL: u, Position: in.Position, DurationSec: dur}, nil
}

func (s *Service) AddVideo(ctx context.Context, actor rbac.Actor, courseID string, in VideoInput) (store.Video, error) {
	v, err := in.video()
	if err != nil {
		return store.Video{}, err
	}
	v.CourseID = courseID
	return s.repo.CreateVideo(ctx, actor, v)
}

func (s *Service) UpdateVideo(ctx context.Context, actor rbac.Actor, videoID string, in VideoInput) (store.Video, error) {
	v, err := in.video()
	if err != nil {
		return store.Video{}, err
	}
	v.ID = videoID
	return s.repo.UpdateVideo(ctx, actor, v)
}

func (s *Service) DeleteVideo(ctx context.Context, actor rbac.Actor, videoID string) error {
	return s.repo.DeleteVideo(ctx, actor, videoID)
}

func (s *Service) Videos(ctx context.Context, actor rbac.Actor, courseID string) ([]store.Video, error) {
	return s.repo.Videos(ctx, actor, courseID)
}

func (s *Service) Enroll(ctx context.Context, actor rbac.Actor, courseID string) (store.Enrollment, bool, error) {
	return s.repo.Enroll(ctx, actor, courseID)
}

func (s *Service) Enrollments(ctx context.Context, actor rbac.Actor, courseID string) ([]store.Enrollment, error) {
	return s.repo.CourseEnrollments(ctx, actor, courseID)
}

func (s *Service) MyEnrollments(ctx context.Context, actor rbac.Actor) ([]store.Enrollment, error) {
	return s.repo.MyEnrollments(ctx, actor)
}

func (s *Service) CompleteVideo(ctx context.Context, actor rbac.Actor, videoID string) (store.Enrollment, error) {
	return s.repo.RecordVideoCompletion(ctx, actor, videoID)
}
