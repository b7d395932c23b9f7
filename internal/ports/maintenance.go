package ports

import (
	"context"
	"errors"
)

// ErrMaintenanceObjectMissing is returned when the view or procedure a
// maintenance job drives does not exist in the connected database.
var ErrMaintenanceObjectMissing = errors.New("maintenance object not present")

// HomepageRefresher rebuilds cached homepage data.
type HomepageRefresher interface {
	RefreshHomeProjects(ctx context.Context) error
}

// StatsProcessor folds raw counters into aggregate statistics.
type StatsProcessor interface {
	ProcessProjectViews(ctx context.Context) error
	ProcessVersionDownloads(ctx context.Context) error
}
