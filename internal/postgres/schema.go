// Roadwatch - Traffic Feed Ingestion and Hourly Statistics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roadwatch

package postgres

// schemaDDL is idempotent and runs as one simple-protocol batch.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS alerts (
    uuid                        TEXT NOT NULL,
    published_at                TIMESTAMPTZ NOT NULL,
    last_updated                TIMESTAMPTZ,
    active                      BOOLEAN NOT NULL DEFAULT TRUE,
    country                     TEXT,
    city                        TEXT,
    type                        TEXT,
    subtype                     TEXT,
    street                      TEXT,
    report_rating               INTEGER,
    report_by_municipality_user BOOLEAN DEFAULT FALSE,
    confidence                  INTEGER,
    reliability                 INTEGER,
    road_type                   INTEGER,
    magvar                      INTEGER,
    report_description          TEXT,
    location                    geometry(Point, 4326),
    PRIMARY KEY (uuid, published_at)
);
CREATE INDEX IF NOT EXISTS idx_alerts_active_last_updated ON alerts (last_updated) WHERE active;
CREATE INDEX IF NOT EXISTS idx_alerts_published_at ON alerts (published_at);

CREATE TABLE IF NOT EXISTS jams (
    uuid                TEXT NOT NULL,
    published_at        TIMESTAMPTZ NOT NULL,
    last_updated        TIMESTAMPTZ,
    active              BOOLEAN NOT NULL DEFAULT TRUE,
    country             TEXT,
    city                TEXT,
    jam_level           INTEGER,
    speed_kmh           DOUBLE PRECISION,
    jam_length          INTEGER,
    turn_type           TEXT,
    end_node            TEXT,
    start_node          TEXT,
    speed               DOUBLE PRECISION,
    road_type           INTEGER,
    delay               INTEGER,
    street              TEXT,
    blocking_alert_uuid TEXT,
    jam_line            geometry(LineString, 4326),
    PRIMARY KEY (uuid, published_at)
);
CREATE INDEX IF NOT EXISTS idx_jams_active_last_updated ON jams (last_updated) WHERE active;
CREATE INDEX IF NOT EXISTS idx_jams_published_at ON jams (published_at);
CREATE INDEX IF NOT EXISTS idx_jams_line ON jams USING GIST (jam_line);

CREATE TABLE IF NOT EXISTS segments (
    id         BIGSERIAL PRIMARY KEY,
    jam_id     BIGINT,
    from_node  BIGINT,
    to_node    BIGINT,
    segment_id BIGINT,
    is_forward BOOLEAN
);

CREATE TABLE IF NOT EXISTS sum_statistics (
    stat_time           TIMESTAMPTZ PRIMARY KEY,
    total_active_jams   BIGINT NOT NULL,
    total_active_alerts BIGINT NOT NULL,
    avg_speed_kmh       DOUBLE PRECISION NOT NULL,
    avg_jam_length      DOUBLE PRECISION NOT NULL,
    avg_delay           DOUBLE PRECISION NOT NULL,
    avg_jam_level       DOUBLE PRECISION NOT NULL,
    computed_at         TIMESTAMPTZ NOT NULL
);
`
