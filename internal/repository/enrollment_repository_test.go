package repository

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
)

func TestEnrollmentRepositoryMergesLegacyProgramLists(t *testing.T) {
	client, observer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me/enrollment", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"userId": "stu-1",
				"role":   map[string]string{"name": "Student"},
				"focusOne": []map[string]interface{}{{
					"_id":  "prog-1",
					"name": "Focus One Math",
					"subjects": []map[string]interface{}{{
						"subject": map[string]string{"_id": "math", "name": "Math"},
						"teacher": "tea-1",
					}},
				}},
				"cohorts": []map[string]interface{}{{"id": "prog-2", "name": "Cohort A"}},
			},
		})
	})

	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := NewEnrollmentRepository(client)
	repo.now = func() time.Time { return fixed }

	enrollment, err := repo.Get(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, enrollment.Role)
	assert.Equal(t, fixed, enrollment.FetchedAt)
	require.Len(t, enrollment.Programs, 2)
	assert.Equal(t, models.ProgramFocusOne, enrollment.Programs[0].Type)
	assert.Equal(t, models.ProgramCohort, enrollment.Programs[1].Type)

	assignment, ok := enrollment.Assignment("prog-1", "math")
	require.True(t, ok)
	assert.Equal(t, "tea-1", assignment.TeacherID)
	assert.Equal(t, []string{"GET /auth/me/enrollment"}, observer.routes)
}
