package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	permissionUseCase "github.com/allisson/agentauth/internal/permission/usecase"
)

// RunSeedPermissions writes the compiled-in permission catalog to the
// database. Safe to run repeatedly: entries already present are left alone.
//
// Requirements: Database must be migrated and accessible.
func RunSeedPermissions(
	ctx context.Context,
	permissions permissionUseCase.PermissionUseCase,
	logger *slog.Logger,
	writer io.Writer,
) error {
	catalog := permissions.Catalog()
	logger.Info("seeding permission catalog", slog.Int("permissions", len(catalog)))

	if err := permissions.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Seeded %d permissions.\n", len(catalog))
	for _, permission := range catalog {
		_, _ = fmt.Fprintf(writer, "  %s (%s)\n", permission.Name, permission.Module)
	}

	logger.Info("permission catalog seeded successfully")
	return nil
}
