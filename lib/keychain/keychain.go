// Package keychain persists portal credentials in a local sqlite
// database so embedding applications can restore sessions across
// restarts. Credentials are stored obfuscated via auth.Credentials
// encoding, which keeps them out of casual view but is not encryption.
package keychain

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jecnaapi/lib/auth"
	"jecnaapi/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "embed"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("keychain")

//go:embed schema.sql
var Schema string

// Keychain stores one credential pair per namespace, e.g. "jecna" and
// "icanteen".
type Keychain struct {
	db *sql.DB
}

// New wraps an already opened database and applies the schema.
func New(database *sql.DB) (*Keychain, error) {
	if _, err := database.Exec(Schema); err != nil {
		return nil, err
	}
	return &Keychain{db: database}, nil
}

// Open opens (or creates) the sqlite database at path. Use ":memory:"
// for an in-memory keychain.
func Open(path string) (*Keychain, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	keychain, err := New(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return keychain, nil
}

func (k *Keychain) Put(ctx context.Context, namespace string, creds auth.Credentials) error {
	ctx, span := tracer.Start(ctx, "Put")
	defer span.End()
	span.SetAttributes(attribute.String("namespace", namespace))

	_, err := k.db.ExecContext(ctx,
		`INSERT INTO credentials (namespace, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (namespace) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		namespace, creds.Encode(), timezone.Now().Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Get returns the credentials stored under namespace. The second return
// value is false when the namespace has no entry.
func (k *Keychain) Get(ctx context.Context, namespace string) (auth.Credentials, bool, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("namespace", namespace))

	var blob []byte
	err := k.db.QueryRowContext(ctx,
		`SELECT blob FROM credentials WHERE namespace = ?`, namespace).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credentials{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return auth.Credentials{}, false, err
	}

	creds, err := auth.Decode(blob)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return auth.Credentials{}, false, err
	}
	return creds, true, nil
}

// UpdatedAt returns the time the namespace's entry was last written.
func (k *Keychain) UpdatedAt(ctx context.Context, namespace string) (time.Time, bool, error) {
	var unix int64
	err := k.db.QueryRowContext(ctx,
		`SELECT updated_at FROM credentials WHERE namespace = ?`, namespace).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(unix, 0).In(timezone.Location), true, nil
}

func (k *Keychain) Delete(ctx context.Context, namespace string) error {
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()
	span.SetAttributes(attribute.String("namespace", namespace))

	_, err := k.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE namespace = ?`, namespace)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Namespaces lists every namespace with a stored entry.
func (k *Keychain) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := k.db.QueryContext(ctx,
		`SELECT namespace FROM credentials ORDER BY namespace`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var namespace string
		if err := rows.Scan(&namespace); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, namespace)
	}
	return namespaces, rows.Err()
}

func (k *Keychain) Close() error {
	return k.db.Close()
}
