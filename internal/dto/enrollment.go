package dto

import (
	"time"

	"github.com/noah-isme/classroom-portal/internal/models"
)

// Enrollment is the payload of GET /auth/me/enrollment.
type Enrollment struct {
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	Programs []Program `json:"programs"`
	// Older API versions split programs by kind.
	FocusOne []Program `json:"focusOne"`
	Cohorts  []Program `json:"cohorts"`
}

// Program is one enrollment entry as sent by the upstream.
type Program struct {
	ID          string              `json:"id"`
	MongoID     string              `json:"_id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	ProgramType string              `json:"programType"`
	StartDate   *time.Time          `json:"startDate"`
	Subjects    []SubjectAssignment `json:"subjects"`
}

// SubjectAssignment links a subject to its teacher and, for teachers, students.
type SubjectAssignment struct {
	Subject  Ref   `json:"subject"`
	Teacher  Ref   `json:"teacher"`
	Students []Ref `json:"students"`
}

// Model flattens the wire payload into one program list.
func (e Enrollment) Model(now time.Time) models.Enrollment {
	out := models.Enrollment{
		UserID:    e.UserID,
		Role:      e.Role.Value,
		Programs:  make([]models.Program, 0, len(e.Programs)+len(e.FocusOne)+len(e.Cohorts)),
		FetchedAt: now,
	}
	for _, p := range e.Programs {
		out.Programs = append(out.Programs, p.Model(""))
	}
	for _, p := range e.FocusOne {
		out.Programs = append(out.Programs, p.Model(models.ProgramFocusOne))
	}
	for _, p := range e.Cohorts {
		out.Programs = append(out.Programs, p.Model(models.ProgramCohort))
	}
	return out
}

// Model converts one program; fallback is used when no type is sent.
func (p Program) Model(fallback models.ProgramType) models.Program {
	kind := NormalizeProgramType(firstNonEmpty(p.Type, p.ProgramType))
	if kind == "" {
		kind = fallback
	}
	program := models.Program{
		ID:        firstNonEmpty(p.ID, p.MongoID),
		Name:      p.Name,
		Type:      kind,
		StartDate: p.StartDate,
		Subjects:  make([]models.SubjectAssignment, 0, len(p.Subjects)),
	}
	for _, s := range p.Subjects {
		assignment := models.SubjectAssignment{
			SubjectID:   s.Subject.ID,
			SubjectName: s.Subject.Name,
			TeacherID:   s.Teacher.ID,
			TeacherName: s.Teacher.Name,
		}
		for _, student := range s.Students {
			if student.ID != "" {
				assignment.StudentIDs = append(assignment.StudentIDs, student.ID)
			}
		}
		program.Subjects = append(program.Subjects, assignment)
	}
	return program
}
