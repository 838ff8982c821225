// Package pg holds PostgreSQL plumbing built on pgx: pool construction with
// retries, a readiness probe, transaction scoping and goose migrations applied
// from an fs.FS.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//		return err
//	}
//
//	err = pg.WithTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "UPDATE sellers SET version = version + 1 WHERE id = $1", id)
//		return err
//	})
package pg
