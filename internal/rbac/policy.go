package rbac

// Kind names the entity a row belongs to.
type Kind string

const (
	KindAccount     Kind = "account"
	KindCourse      Kind = "course"
	KindVideo       Kind = "video"
	KindEnrollment  Kind = "enrollment"
	KindExam        Kind = "exam"
	KindQuestion    Kind = "question"
	KindAttempt     Kind = "attempt"
	KindCertificate Kind = "certificate"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionReadAnswerKey covers the correct-answer field of questions.
	ActionReadAnswerKey Action = "read_answer_key"
	// ActionTake covers starting a graded session on an exam.
	ActionTake Action = "take"
)

// Resource is one row as the policy sees it. Child rows (video, exam,
// question, enrollment, attempt, certificate) carry no owner of their own;
// the store fills the Course* fields by joining up to the owning course.
type Resource struct {
	Kind Kind

	// OwnerID is the account the row names: the account itself, or the
	// student of an enrollment, attempt or certificate.
	OwnerID string

	CourseInstructorID string
	CoursePublished    bool

	// Enrolled reports whether the requesting actor holds an enrollment in
	// the row's course.
	Enrolled bool
}

// CanAccess reports whether actor may perform action on the row. It is a
// pure function of its arguments.
func CanAccess(actor Actor, action Action, r Resource) bool {
	switch a := actor.(type) {
	case Admin:
		if r.Kind == KindAttempt && action == ActionCreate {
			return r.OwnerID == a.AccountID
		}
		return true
	case Instructor:
		return instructorCan(a.AccountID, action, r)
	case Student:
		return studentCan(a.AccountID, action, r)
	default:
		return anonymousCan(action, r)
	}
}

func anonymousCan(action Action, r Resource) bool {
	switch r.Kind {
	case KindAccount:
		// signup
		return action == ActionCreate
	case KindCourse, KindVideo, KindExam:
		return action == ActionRead && r.CoursePublished
	}
	return false
}

func studentCan(id string, action Action, r Resource) bool {
	own := id != "" && r.OwnerID == id
	courseVisible := r.CoursePublished || r.Enrolled

	switch r.Kind {
	case KindAccount:
		return (action == ActionRead || action == ActionUpdate) && own
	case KindCourse, KindVideo, KindQuestion:
		return action == ActionRead && courseVisible
	case KindExam:
		switch action {
		case ActionRead:
			return courseVisible
		case ActionTake:
			return r.Enrolled
		}
	case KindEnrollment:
		switch action {
		case ActionRead, ActionUpdate:
			return own
		case ActionCreate:
			return own && r.CoursePublished
		}
	case KindAttempt:
		switch action {
		case ActionRead:
			return own
		case ActionCreate:
			return own && courseVisible
		}
	case KindCertificate:
		switch action {
		case ActionRead:
			return own
		case ActionCreate:
			return own && r.Enrolled
		}
	}
	return false
}

func instructorCan(id string, action Action, r Resource) bool {
	owns := id != "" && r.CourseInstructorID == id

	switch r.Kind {
	case KindAccount:
		return (action == ActionRead || action == ActionUpdate) && id != "" && r.OwnerID == id
	case KindCourse, KindVideo, KindExam:
		switch action {
		case ActionRead:
			return r.CoursePublished || owns
		case ActionCreate, ActionUpdate, ActionDelete, ActionReadAnswerKey:
			return owns
		}
	case KindQuestion:
		switch action {
		case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionReadAnswerKey:
			return owns
		}
	case KindEnrollment, KindAttempt:
		return action == ActionRead && owns
	}
	return false
}
