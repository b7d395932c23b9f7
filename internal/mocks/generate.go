// Package mocks provides mock implementations for testing the ssogate services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockUserRepository(ctrl)
//	mockRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(user, nil)
package mocks

// Generate mock for UserRepository interface from internal/ports package.
// This creates MockUserRepository with methods: GetByUsername, CreateIfAbsent
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/ssogate/internal/ports UserRepository

// Generate mock for RoleRepository interface from internal/ports package.
// This creates MockRoleRepository with methods: ReplaceGlobalRoles, ListGlobalRoles
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=role_repository_mock.go github.com/target/ssogate/internal/ports RoleRepository
