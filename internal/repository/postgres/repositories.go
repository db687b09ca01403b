package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users       *UserRepository
	ResetTokens *ResetTokenRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(exec pgTxExecutor) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(exec),
		ResetTokens: NewResetTokenRepository(exec),
	}
}
