package data

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/target/ssogate/internal/errors"
	"github.com/target/ssogate/internal/ports"
)

// MaintenanceRepo runs the homepage and statistics upkeep owned by the
// application schema. The objects it drives are created by the application,
// not by this service's migrations.
type MaintenanceRepo struct {
	DB *sql.DB
}

var (
	_ ports.HomepageRefresher = (*MaintenanceRepo)(nil)
	_ ports.StatsProcessor    = (*MaintenanceRepo)(nil)
)

// NewMaintenanceRepo creates a new MaintenanceRepo.
func NewMaintenanceRepo(db *sql.DB) *MaintenanceRepo {
	return &MaintenanceRepo{DB: db}
}

// RefreshHomeProjects refreshes the home_projects materialized view.
func (r *MaintenanceRepo) RefreshHomeProjects(ctx context.Context) error {
	ok, err := r.exists(ctx, `SELECT to_regclass('home_projects') IS NOT NULL`)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("home_projects: %w", ports.ErrMaintenanceObjectMissing)
	}
	if _, err := r.DB.ExecContext(ctx, `REFRESH MATERIALIZED VIEW home_projects`); err != nil {
		return apperrors.MapDBError(fmt.Errorf("refresh home_projects: %w", err))
	}
	return nil
}

// ProcessProjectViews folds raw project view rows into daily statistics.
func (r *MaintenanceRepo) ProcessProjectViews(ctx context.Context) error {
	return r.callProcedure(ctx, "process_project_views")
}

// ProcessVersionDownloads folds raw download rows into daily statistics.
func (r *MaintenanceRepo) ProcessVersionDownloads(ctx context.Context) error {
	return r.callProcedure(ctx, "process_version_downloads")
}

func (r *MaintenanceRepo) callProcedure(ctx context.Context, name string) error {
	ok, err := r.exists(ctx, `SELECT to_regprocedure($1) IS NOT NULL`, name+"()")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, ports.ErrMaintenanceObjectMissing)
	}
	// name comes from the fixed set above, never from input.
	if _, err := r.DB.ExecContext(ctx, `CALL `+name+`()`); err != nil {
		return apperrors.MapDBError(fmt.Errorf("call %s: %w", name, err))
	}
	return nil
}

func (r *MaintenanceRepo) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("check maintenance object: %w", err))
	}
	return ok, nil
}
