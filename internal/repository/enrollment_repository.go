package repository

import (
	"context"
	"time"

	"github.com/noah-isme/classroom-portal/internal/dto"
	"github.com/noah-isme/classroom-portal/internal/models"
)

// EnrollmentRepository reads the caller's enrollment snapshot from the upstream API.
type EnrollmentRepository struct {
	client *ClassroomClient
	now    func() time.Time
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(client *ClassroomClient) *EnrollmentRepository {
	return &EnrollmentRepository{client: client, now: time.Now}
}

// Get fetches the enrollment of the token's owner.
func (r *EnrollmentRepository) Get(ctx context.Context, token string) (*models.Enrollment, error) {
	var wire dto.Enrollment
	if err := r.client.Get(ctx, Call{Path: "/auth/me/enrollment", Route: "/auth/me/enrollment", Token: token}, &wire); err != nil {
		return nil, err
	}
	enrollment := wire.Model(r.now().UTC())
	return &enrollment, nil
}
