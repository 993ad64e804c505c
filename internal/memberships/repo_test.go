package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coownly/esign-backend/pkg/db/dbtest"
	"github.com/coownly/esign-backend/pkg/enums"
)

func TestRepositoryMembershipFlow(t *testing.T) {
	t.Parallel()

	repo := NewRepository(dbtest.Open(t, "memberships"))
	ctx := context.Background()
	groupID := uuid.New()
	ownerID := uuid.New()
	memberID := uuid.New()

	owner, err := repo.CreateMembership(ctx, groupID, ownerID, enums.GroupRoleOwner)
	require.NoError(t, err)
	_, err = repo.CreateMembership(ctx, groupID, memberID, enums.GroupRoleMember)
	require.NoError(t, err)

	ok, role, err := repo.IsMember(ctx, groupID, ownerID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, enums.GroupRoleOwner, role)

	ok, role, err = repo.IsMember(ctx, groupID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, role)

	ok, _, err = repo.IsMember(ctx, uuid.New(), ownerID)
	require.NoError(t, err)
	assert.False(t, ok, "membership is scoped to the group")

	isAdmin, err := repo.UserHasRole(ctx, groupID, memberID, enums.GroupRoleOwner, enums.GroupRoleAdmin)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	isAdmin, err = repo.UserHasRole(ctx, groupID, ownerID, enums.GroupRoleOwner, enums.GroupRoleAdmin)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	fetched, err := repo.GetMembership(ctx, groupID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, fetched.ID)

	members, err := repo.ListGroupMembers(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = repo.CreateMembership(ctx, groupID, ownerID, enums.GroupRoleAdmin)
	assert.Error(t, err, "duplicate membership must fail")
}

func TestCreateMembershipRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	repo := NewRepository(dbtest.Open(t, "memberships_role"))
	_, err := repo.CreateMembership(context.Background(), uuid.New(), uuid.New(), enums.GroupRole("viewer"))
	require.Error(t, err)
}
