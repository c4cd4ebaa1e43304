package store_postgres

// CreateTableStmt bootstraps the pending-refresh record table.
const CreateTableStmt = `
CREATE TABLE IF NOT EXISTS matview_pending_refresh
(
    gid         TEXT        NOT NULL,
    queue       BYTEA       NOT NULL,
    queue_size  INTEGER     NOT NULL,
    xact_id     BIGINT      NOT NULL,
    prepared_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at  TIMESTAMPTZ NOT NULL,
    corrupted   BOOLEAN     NOT NULL DEFAULT FALSE,

    PRIMARY KEY (gid)
);
`

// putStmt upserts the record of a gid. A re-prepare of the same gid replaces
// the prior record. |xact_id| captures txid_current() of the inserting
// session, which must be the session of the transaction being prepared.
const putStmt = `
INSERT INTO matview_pending_refresh
    (gid, queue, queue_size, xact_id, expires_at)
VALUES ($1, $2, $3, txid_current(), now() + $4::interval)
ON CONFLICT (gid) DO UPDATE SET
    queue       = EXCLUDED.queue,
    queue_size  = EXCLUDED.queue_size,
    xact_id     = EXCLUDED.xact_id,
    prepared_at = now(),
    expires_at  = EXCLUDED.expires_at,
    corrupted   = FALSE;
`

const getStmt = `
SELECT queue FROM matview_pending_refresh WHERE gid = $1;
`

const deleteStmt = `
DELETE FROM matview_pending_refresh WHERE gid = $1;
`

const scanExpiredStmt = `
SELECT gid FROM matview_pending_refresh
WHERE expires_at <= $1 AND NOT corrupted
ORDER BY prepared_at ASC;
`

const markCorruptedStmt = `
UPDATE matview_pending_refresh SET corrupted = TRUE WHERE gid = $1;
`

// outcomeStmt resolves a gid's fate: still listed in pg_prepared_xacts means
// pending; otherwise txid_status of the captured xact_id distinguishes
// committed from aborted, and is NULL once the xid has aged out of the
// commit log.
const outcomeStmt = `
SELECT
    EXISTS (SELECT 1 FROM pg_prepared_xacts WHERE gid = r.gid),
    txid_status(r.xact_id)
FROM matview_pending_refresh AS r WHERE r.gid = $1;
`
