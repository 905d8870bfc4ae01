package registry

import (
	"context"
	"time"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/game"
)

// opTimeout bounds the wallet and store work of one operation.
const opTimeout = 10 * time.Second

// opContext detaches ctx from its caller so an operation whose connection
// goes away still runs to completion or rolls back cleanly.
func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
}

type walletOp struct {
	userID string
	amount int64 // > 0 credited, < 0 debited
	reason string
}

// txn records everything one operation does to a table so it can be
// persisted in one go or undone. It is only used with the table lock held.
type txn struct {
	r        *Registry
	e        *entry
	table    game.Table
	current  *game.Game
	game     *game.Game
	snapshot *game.Game

	created  []string
	wallet   []walletOp
	reserved []string
	release  []string

	saves   []*game.Game
	actions []game.Action
	records []*game.HandRecord
}

func (r *Registry) begin(e *entry, g *game.Game) *txn {
	tx := &txn{r: r, e: e, table: e.table, current: e.current, game: g}
	if g != nil {
		tx.snapshot = g.Clone()
	}
	return tx
}

func (tx *txn) reserve(userID string) error {
	if err := tx.r.reserve(userID, tx.e.table.ID); err != nil {
		return err
	}
	tx.reserved = append(tx.reserved, userID)
	return nil
}

func (tx *txn) debit(ctx context.Context, userID string, amount int64, reason string) error {
	if err := tx.r.wallet.Debit(ctx, userID, amount, reason); err != nil {
		return err
	}
	tx.wallet = append(tx.wallet, walletOp{userID: userID, amount: -amount, reason: reason})
	return nil
}

func (tx *txn) credit(ctx context.Context, userID string, amount int64, reason string) error {
	if amount == 0 {
		return nil
	}
	if err := tx.r.wallet.Credit(ctx, userID, amount, reason); err != nil {
		return err
	}
	tx.wallet = append(tx.wallet, walletOp{userID: userID, amount: amount, reason: reason})
	return nil
}

func (tx *txn) save(g *game.Game) {
	for _, s := range tx.saves {
		if s == g {
			return
		}
	}
	tx.saves = append(tx.saves, g)
}

// rollback restores the table to how begin found it and compensates every
// wallet movement made so far.
func (tx *txn) rollback(ctx context.Context) {
	r, e := tx.r, tx.e
	e.table = tx.table
	if tx.game != nil {
		tx.game.Restore(tx.snapshot)
	}
	e.current = tx.current
	for _, id := range tx.created {
		r.untrackGame(e, id)
	}
	for i := len(tx.wallet) - 1; i >= 0; i-- {
		op := tx.wallet[i]
		var err error
		if op.amount < 0 {
			err = r.wallet.Credit(ctx, op.userID, -op.amount, "reverse "+op.reason)
		} else {
			err = r.wallet.Debit(ctx, op.userID, op.amount, "reverse "+op.reason)
		}
		if err != nil {
			r.logger.Error("wallet compensation failed", "user", op.userID, "amount", op.amount, "error", err)
		}
	}
	for _, u := range tx.reserved {
		r.release(u)
	}
}

// commit writes the table, every touched game, the new actions and hand
// records. On failure the whole operation is rolled back.
func (tx *txn) commit(ctx context.Context) error {
	r, e := tx.r, tx.e
	err := func() error {
		if err := r.store.SaveTable(ctx, &e.table); err != nil {
			return err
		}
		for _, g := range tx.saves {
			if err := r.store.SaveGame(ctx, g); err != nil {
				return err
			}
		}
		for _, a := range tx.actions {
			if err := r.store.AppendAction(ctx, a); err != nil {
				return err
			}
		}
		for _, rec := range tx.records {
			if err := r.store.AppendHandRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		r.logger.Error("persist failed, rolling back", "table", e.table.ID, "error", err)
		tx.rollback(ctx)
		return apperr.Internal(err, "persist table %s", e.table.ID)
	}
	for _, u := range tx.release {
		r.release(u)
	}
	return nil
}
