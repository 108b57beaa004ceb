package service

import (
	"context"

	"cscenter/backend/internal/repository"
)

// inTx 在事务中执行 fn；fn 返回错误或 panic 时回滚
// mock 聚合没有数据库连接，此时直接在原聚合上执行
func inTx(ctx context.Context, repo *repository.Repository, fn func(txRepo *repository.Repository) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}
	if tx != nil {
		return tx.Commit().Error
	}
	return nil
}
