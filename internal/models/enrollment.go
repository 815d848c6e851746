package models

import "time"

// SubjectAssignment maps a subject within a program to its teacher and, for
// teacher snapshots, the students attached to it.
type SubjectAssignment struct {
	SubjectID   string   `json:"subjectId"`
	SubjectName string   `json:"subjectName"`
	TeacherID   string   `json:"teacherId"`
	TeacherName string   `json:"teacherName,omitempty"`
	StudentIDs  []string `json:"studentIds,omitempty"`
}

// Program is one Focus One or Cohort enrollment.
type Program struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      ProgramType         `json:"type"`
	StartDate *time.Time          `json:"startDate,omitempty"`
	Subjects  []SubjectAssignment `json:"subjects"`
}

// Enrollment is the caller's cached snapshot of their programs.
type Enrollment struct {
	UserID    string    `json:"userId"`
	Role      UserRole  `json:"role"`
	Programs  []Program `json:"programs"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Program returns the program with the given id.
func (e Enrollment) Program(id string) (Program, bool) {
	for _, p := range e.Programs {
		if p.ID == id {
			return p, true
		}
	}
	return Program{}, false
}

// Assignment resolves the subject assignment within a program.
func (e Enrollment) Assignment(programID, subjectID string) (SubjectAssignment, bool) {
	program, ok := e.Program(programID)
	if !ok {
		return SubjectAssignment{}, false
	}
	for _, s := range program.Subjects {
		if s.SubjectID == subjectID {
			return s, true
		}
	}
	return SubjectAssignment{}, false
}

// TeachesStudent reports whether the teacher snapshot covers the student for the subject.
func (e Enrollment) TeachesStudent(programID, subjectID, studentID string) bool {
	assignment, ok := e.Assignment(programID, subjectID)
	if !ok || assignment.TeacherID != e.UserID {
		return false
	}
	if len(assignment.StudentIDs) == 0 {
		return true
	}
	for _, id := range assignment.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}
