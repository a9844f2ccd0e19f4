package webhook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planodeaula/entitlements/pkg/pg"
)

// UserResolver resolves a payment-provider email to an internal user ID.
//
// Email as the join key is a deliberate simplification inherited from
// the product: it assumes emails are unique and stable, which the
// surrounding system does not otherwise guarantee. The interface exists
// so a stable-identifier resolver can replace this one without touching
// the processor.
type UserResolver interface {
	// ResolveEmail returns the user ID for an email, or ErrUserNotFound.
	ResolveEmail(ctx context.Context, email string) (uuid.UUID, error)
}

// PGUserResolver resolves emails against the users table.
type PGUserResolver struct {
	pool *pgxpool.Pool
}

// NewPGUserResolver creates a resolver backed by the given pool.
func NewPGUserResolver(pool *pgxpool.Pool) *PGUserResolver {
	if pool == nil {
		panic("webhook: pgx pool is required")
	}
	return &PGUserResolver{pool: pool}
}

func (r *PGUserResolver) ResolveEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE lower(email) = lower($1)`,
		email).Scan(&userID)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve user by email: %w", err)
	}
	return userID, nil
}

// MemoryUserResolver is an in-memory UserResolver for tests.
type MemoryUserResolver struct {
	mu    sync.Mutex
	users map[string]uuid.UUID
}

// NewMemoryUserResolver creates an empty in-memory resolver.
func NewMemoryUserResolver() *MemoryUserResolver {
	return &MemoryUserResolver{users: make(map[string]uuid.UUID)}
}

// Add registers an email for a user ID.
func (r *MemoryUserResolver) Add(email string, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[strings.ToLower(email)] = userID
}

func (r *MemoryUserResolver) ResolveEmail(_ context.Context, email string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.users[strings.ToLower(email)]
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}
	return userID, nil
}
