package store

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS skill (
	id             TEXT PRIMARY KEY,
	owner_user_id  TEXT,
	visibility     TEXT NOT NULL DEFAULT 'private',
	slug           TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	skill_markdown TEXT NOT NULL DEFAULT '',
	metadata       TEXT NOT NULL DEFAULT '{}',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_skill_owner_slug ON skill((COALESCE(owner_user_id, '')), slug);

CREATE TABLE IF NOT EXISTS skill_resource (
	id         TEXT PRIMARY KEY,
	skill_id   TEXT NOT NULL REFERENCES skill(id) ON DELETE CASCADE,
	path       TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'other'
	           CHECK (kind IN ('reference', 'script', 'asset', 'other')),
	content    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(skill_id, path)
);

CREATE TABLE IF NOT EXISTS skill_link (
	id                 TEXT PRIMARY KEY,
	source_skill_id    TEXT REFERENCES skill(id) ON DELETE CASCADE,
	source_resource_id TEXT REFERENCES skill_resource(id) ON DELETE CASCADE,
	target_skill_id    TEXT REFERENCES skill(id) ON DELETE CASCADE,
	target_resource_id TEXT REFERENCES skill_resource(id) ON DELETE CASCADE,
	kind               TEXT NOT NULL,
	metadata           TEXT NOT NULL DEFAULT '{}',
	created_by_user_id TEXT,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK ((source_skill_id IS NULL) <> (source_resource_id IS NULL)),
	CHECK ((target_skill_id IS NULL) <> (target_resource_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_skill_link_source ON skill_link(source_skill_id);
CREATE INDEX IF NOT EXISTS idx_skill_link_target_skill ON skill_link(target_skill_id);
CREATE INDEX IF NOT EXISTS idx_skill_link_target_resource ON skill_link(target_resource_id);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS skill (
	id             UUID PRIMARY KEY,
	owner_user_id  TEXT,
	visibility     TEXT NOT NULL DEFAULT 'private',
	slug           TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	skill_markdown TEXT NOT NULL DEFAULT '',
	metadata       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_skill_owner_slug ON skill((COALESCE(owner_user_id, '')), slug);

CREATE TABLE IF NOT EXISTS skill_resource (
	id         UUID PRIMARY KEY,
	skill_id   UUID NOT NULL REFERENCES skill(id) ON DELETE CASCADE,
	path       TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'other'
	           CHECK (kind IN ('reference', 'script', 'asset', 'other')),
	content    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(skill_id, path)
);

CREATE TABLE IF NOT EXISTS skill_link (
	id                 UUID PRIMARY KEY,
	source_skill_id    UUID REFERENCES skill(id) ON DELETE CASCADE,
	source_resource_id UUID REFERENCES skill_resource(id) ON DELETE CASCADE,
	target_skill_id    UUID REFERENCES skill(id) ON DELETE CASCADE,
	target_resource_id UUID REFERENCES skill_resource(id) ON DELETE CASCADE,
	kind               TEXT NOT NULL,
	metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_by_user_id TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((source_skill_id IS NULL) <> (source_resource_id IS NULL)),
	CHECK ((target_skill_id IS NULL) <> (target_resource_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_skill_link_source ON skill_link(source_skill_id);
CREATE INDEX IF NOT EXISTS idx_skill_link_target_skill ON skill_link(target_skill_id);
CREATE INDEX IF NOT EXISTS idx_skill_link_target_resource ON skill_link(target_resource_id);
`
