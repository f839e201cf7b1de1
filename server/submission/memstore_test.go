// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 不同队伍的事务不会互相阻塞，一个事务回滚时
// 只能撤掉它自己插入的台账行，不能碰并发事务已提交的行
func TestMemStoreRollbackRemovesOwnSolveOnly(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	inserted := make(chan struct{})
	committed := make(chan struct{})
	done := make(chan error, 1)

	// 事务1：插入队伍1的行，等事务2提交后再失败回滚
	go func() {
		done <- store.InTx(ctx, func(tx Tx) error {
			if err := tx.InsertSolve(ctx, &Solve{
				ChallengeID: 100, TeamID: 1, UserID: 10,
				Flag: "wrong", SubmittedAt: time.Now(),
			}); err != nil {
				return err
			}
			close(inserted)
			<-committed
			return errors.New("simulated failure")
		})
	}()

	<-inserted

	// 事务2：插入队伍2的行并正常提交
	err := store.InTx(ctx, func(tx Tx) error {
		return tx.InsertSolve(ctx, &Solve{
			ChallengeID: 100, TeamID: 2, UserID: 20,
			Flag: "ractf{ok}", Correct: true, Points: 100,
			SubmittedAt: time.Now(),
		})
	})
	require.NoError(t, err)
	close(committed)

	require.Error(t, <-done)

	// 队伍2已提交的行保留，队伍1回滚的行被准确删掉
	solves := store.Solves()
	require.Len(t, solves, 1)
	assert.Equal(t, int64(2), solves[0].TeamID)
	assert.True(t, solves[0].Correct)
}
