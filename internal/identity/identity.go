package identity

import "context"

type Role string

const (
	RoleOperator Role = "operator"
	RoleAgent    Role = "agent"
)

// Identity is the authenticated caller every store call is scoped to.
// BotID optionally narrows an agent scope to a single bot.
type Identity struct {
	UserID string
	Role   Role
	BotID  string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// Operator is a shorthand for an operator-scoped context.
func Operator(ctx context.Context, userID string) context.Context {
	return WithIdentity(ctx, Identity{UserID: userID, Role: RoleOperator})
}

// Agent is a shorthand for an agent scope bound to one bot.
func Agent(ctx context.Context, userID, botID string) context.Context {
	return WithIdentity(ctx, Identity{UserID: userID, Role: RoleAgent, BotID: botID})
}
