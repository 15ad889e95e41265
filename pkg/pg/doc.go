// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// Connect opens a pool with exponential-backoff retries, Migrate applies
// goose migrations from an fs.FS (usually an embedded directory), and
// WithTx wraps a function in a transaction. The Is*Error helpers classify
// pgconn errors so repositories can map them onto domain sentinels.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
package pg
