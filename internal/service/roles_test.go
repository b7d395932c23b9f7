package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/mocks"
	authmocks "github.com/target/ssogate/internal/mocks/auth"
	"go.uber.org/mock/gomock"
)

func TestRoleSynchronizer_ReplacesSet(t *testing.T) {
	repo := authmocks.NewMemoryRoleRepository()
	s, err := NewRoleSynchronizer(RoleSynchronizerOptions{Roles: repo})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Sync(ctx, 1, []domainauth.RoleGrant{
		{RoleID: domainauth.RoleAdmin, Accepted: true},
		{RoleID: domainauth.RoleUser, Accepted: true},
	}))
	require.NoError(t, s.Sync(ctx, 1, []domainauth.RoleGrant{
		{RoleID: domainauth.RoleModerator, Accepted: false},
	}))

	got, err := s.GlobalRoles(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []domainauth.RoleGrant{{RoleID: domainauth.RoleModerator, Accepted: false}}, got)
}

func TestRoleSynchronizer_EmptySetClearsRoles(t *testing.T) {
	repo := authmocks.NewMemoryRoleRepository()
	s, err := NewRoleSynchronizer(RoleSynchronizerOptions{Roles: repo})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Sync(ctx, 3, []domainauth.RoleGrant{{RoleID: domainauth.RoleAdmin, Accepted: true}}))
	require.NoError(t, s.Sync(ctx, 3, nil))

	got, err := s.GlobalRoles(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRoleSynchronizer_DedupesBeforeWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoleRepository(ctrl)
	repo.EXPECT().
		ReplaceGlobalRoles(gomock.Any(), int64(5), []domainauth.RoleGrant{
			{RoleID: domainauth.RoleAdmin, Accepted: true},
			{RoleID: domainauth.RoleUser, Accepted: false},
		}).
		Return(nil)

	s, err := NewRoleSynchronizer(RoleSynchronizerOptions{Roles: repo})
	require.NoError(t, err)

	err = s.Sync(context.Background(), 5, []domainauth.RoleGrant{
		{RoleID: domainauth.RoleAdmin, Accepted: false},
		{RoleID: domainauth.RoleUser, Accepted: false},
		{RoleID: domainauth.RoleAdmin, Accepted: true},
		{RoleID: "", Accepted: true},
	})
	require.NoError(t, err)
}

func TestRoleSynchronizer_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoleRepository(ctrl)
	boom := errors.New("deadlock detected")
	repo.EXPECT().ReplaceGlobalRoles(gomock.Any(), int64(1), gomock.Any()).Return(boom)

	s, err := NewRoleSynchronizer(RoleSynchronizerOptions{Roles: repo})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Sync(context.Background(), 1, nil), boom)
	assert.Error(t, s.Sync(context.Background(), 0, nil))

	_, err = NewRoleSynchronizer(RoleSynchronizerOptions{})
	assert.Error(t, err)
}
