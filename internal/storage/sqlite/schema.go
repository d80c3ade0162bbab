package sqlite

const schema = `
-- Registry event history (diagnostics only; the merged kernel list is never stored)
CREATE TABLE IF NOT EXISTS registry_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('finder_registered', 'finder_deregistered', 'kernels_changed', 'kernels_listed', 'finder_failed')),
    timestamp DATETIME NOT NULL,
    session_id TEXT NOT NULL,
    finder_id TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL CHECK(severity IN ('info', 'warning', 'error')),
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_registry_events_session ON registry_events(session_id);
CREATE INDEX IF NOT EXISTS idx_registry_events_type ON registry_events(type);
CREATE INDEX IF NOT EXISTS idx_registry_events_timestamp ON registry_events(timestamp);
`
