package service

import (
	"context"

	"userhub/api/internal/repository"
)

type repositoryTransactor struct {
	tm *repository.TxManager
}

// NewRepositoryTransactor adapts a repository.TxManager to Transactor.
func NewRepositoryTransactor(tm *repository.TxManager) Transactor {
	return repositoryTransactor{tm: tm}
}

func (r repositoryTransactor) WithinTx(ctx context.Context, fn func(users UserStore, tokens TokenStore) error) error {
	return r.tm.WithinTx(ctx, func(users *repository.UserRepository, tokens *repository.ActivationRepository) error {
		return fn(users, tokens)
	})
}
