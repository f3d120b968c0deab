// Package database provides the bridge's SQLite store.
//
// The store is optional: it only exists to keep an audit trail of entity
// registrations across restarts. It manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Forward/backward schema migrations loaded from an fs.FS
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied in version order.
package database
