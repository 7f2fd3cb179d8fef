package storage

import (
	"context"

	"github.com/xaenox/botpanel/internal/identity"
)

func reader(ctx context.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Identity{}, ErrPermissionDenied
	}
	return id, nil
}

func operator(ctx context.Context) (identity.Identity, error) {
	id, err := reader(ctx)
	if err != nil {
		return id, err
	}
	if id.Role != identity.RoleOperator {
		return identity.Identity{}, ErrPermissionDenied
	}
	return id, nil
}

func agent(ctx context.Context, botID string) (identity.Identity, error) {
	id, err := reader(ctx)
	if err != nil {
		return id, err
	}
	if id.Role != identity.RoleAgent || (id.BotID != "" && id.BotID != botID) {
		return identity.Identity{}, ErrPermissionDenied
	}
	return id, nil
}
