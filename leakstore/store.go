// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package leakstore stores parsed leaks in a single SQLite file.
//
// Every system, cookie, credential and kept artifact file is an element, a
// JSON object with a "type" field, stored in a full text indexed table.
// Artifact files are kept in an sqlar table and referenced by the
// export_path field of their file element.
package leakstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

const leakstoreVersion = 1
const leakstoreApplicationID = 1819042155
const discriminator = "type"

// JSONElement is a single entry in the database.
type JSONElement []byte

var (
	// ErrStoreExists is returned by New if the file exists already.
	ErrStoreExists = errors.New("store already exists")
	// ErrStoreNotExists is returned by Open if the file does not exist.
	ErrStoreNotExists = errors.New("store does not exist")

	errSchemaNotFound = errors.New("schema not found")
)

// LeakStore is a SQLite file containing the elements of one or more leaks.
// It must not be used from several goroutines at once.
type LeakStore struct {
	cursor  *sqlite.Conn
	types   *typeMap
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// New creates a new store, url must not exist.
func New(url string) (*LeakStore, error) {
	return open(url, true)
}

// Open opens an existing store.
func Open(url string) (*LeakStore, error) {
	return open(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}

func open(url string, create bool) (*LeakStore, error) { // nolint:gocyclo,funlen
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		exists := true
		if _, err := os.Stat(url); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			exists = false
		}

		if create && exists {
			return nil, errors.Wrap(ErrStoreExists, url)
		}
		if !create && !exists {
			return nil, errors.Wrap(ErrStoreNotExists, url)
		}

		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
		}
	}

	store := &LeakStore{logger: slog.Default(), types: newTypeMap()}

	var err error
	store.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}

	if create {
		err = store.setup()
	} else {
		err = store.check()
	}
	if err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	if err := store.setupTypes(); err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	store.schemas, err = loadSchemas()
	if err != nil {
		store.cursor.Close() // nolint:errcheck
		return nil, err
	}

	return store, nil
}

func (store *LeakStore) setup() error {
	store.logger.Info("creating store")
	if err := setPragma(store.cursor, "application_id", leakstoreApplicationID); err != nil {
		return err
	}
	if err := setPragma(store.cursor, "user_version", leakstoreVersion); err != nil {
		return err
	}
	if err := store.exec("CREATE VIRTUAL TABLE `elements` " +
		"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '@/.'\")"); err != nil {
		return err
	}
	return store.exec(sqlarTable)
}

func (store *LeakStore) check() error {
	applicationID, err := pragma(store.cursor, "application_id")
	if err != nil {
		return err
	}
	if applicationID != leakstoreApplicationID {
		msg := "wrong file format (application_id is %d, requires %d)"
		return fmt.Errorf(msg, applicationID, leakstoreApplicationID)
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return err
	}
	if version != leakstoreVersion {
		msg := "wrong file format (user_version is %d, requires %d)"
		return fmt.Errorf(msg, version, leakstoreVersion)
	}
	return nil
}

// SetLogger replaces the default logger.
func (store *LeakStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		store.logger = logger
	}
}

/* ################################
#   API
################################ */

// Insert adds a single element. Elements without id get a new
// "<type>--<uuid>" id.
func (store *LeakStore) Insert(element JSONElement) (string, error) {
	valErr, err := store.validateElementSchema(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(valErr) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(valErr, ","))
	}

	nestedElement := map[string]interface{}{}
	if err := json.Unmarshal(element, &nestedElement); err != nil {
		return "", err
	}

	flatElement := flatten(nestedElement)

	elementType, ok := flatElement[discriminator].(string)
	if !ok || elementType == "" {
		return "", errors.New("element requires type")
	}
	if _, ok := flatElement[elementType]; ok {
		return "", fmt.Errorf("element must not contain a field '%s'", elementType)
	}
	id, ok := flatElement["id"].(string)
	if !ok {
		id = elementType + "--" + uuid.New().String()
		flatElement["id"] = id
		nestedElement["id"] = id

		element, err = json.Marshal(nestedElement)
		if err != nil {
			return "", err
		}
	}

	store.types.addAll(elementType, flatElement)

	stmt, err := store.cursor.Prepare("INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)")
	if err != nil {
		return "", errors.Wrap(err, "could not prepare insert")
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		return "", errors.Wrap(err, "could not insert element")
	}

	return id, stmt.Reset()
}

// InsertBatch adds a set of elements in a single transaction.
func (store *LeakStore) InsertBatch(elements []JSONElement) (ids []string, err error) {
	if len(elements) == 0 {
		return nil, nil
	}
	if err := store.exec("BEGIN"); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.exec("ROLLBACK")
		}
	}()

	for _, element := range elements {
		id, err := store.Insert(element)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, store.exec("COMMIT")
}

// Get retrieves a single element.
func (store *LeakStore) Get(id string) (JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.Errorf("element %s does not exist", id)
}

// Query executes a sql query that returns a json column.
func (store *LeakStore) Query(query string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	return store.rowsToElements(stmt)
}

// Select retrieves all elements that match any of the conditions. Each
// condition is a set of field, LIKE pattern pairs that must all match.
func (store *LeakStore) Select(conditions []map[string]string) ([]JSONElement, error) {
	var ors []string
	var values []string
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var ands []string
		for _, key := range keys {
			ands = append(ands, "json_extract(json, ?) LIKE ?")
			values = append(values, "$."+key, condition[key])
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}

	query := "SELECT json FROM `elements`"
	if len(ors) > 0 {
		query += " WHERE " + strings.Join(ors, " OR ")
	}

	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, value := range values {
		stmt.BindText(i+1, value)
	}
	return store.rowsToElements(stmt)
}

// Search runs a full text query on all elements.
func (store *LeakStore) Search(q string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE elements = $query ORDER BY rank")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// All returns every element.
func (store *LeakStore) All() ([]JSONElement, error) {
	return store.Select(nil)
}

// Close creates the per type views and closes the database.
func (store *LeakStore) Close() error {
	if store.types.changed {
		if err := store.createViews(); err != nil {
			store.logger.Warn("could not create views", "error", err)
		}
	}
	return store.cursor.Close()
}

func (store *LeakStore) createViews() error {
	for typeName, fields := range store.types.all() {
		if err := store.exec(fmt.Sprintf("DROP VIEW IF EXISTS '%s'", typeName)); err != nil {
			return err
		}
		var columns []string
		for field := range fields {
			columns = append(columns, fmt.Sprintf("json_extract(json, '$.%s') as '%s'", field, field))
		}
		sort.Strings(columns)
		err := store.exec(
			fmt.Sprintf("CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '$.%s') = '%s'",
				typeName, strings.Join(columns, ", "), discriminator, typeName),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (store *LeakStore) validateElementSchema(element JSONElement) (flaws []string, err error) {
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return []string{"element needs to have a type"}, nil
	}

	schema, err := store.Schema(elementType.String())
	if err != nil {
		if errors.Is(err, errSchemaNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not get schema")
	}

	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr.Error()))
	}
	return flaws, nil
}

// Schema returns the JSON schema for an element type.
func (store *LeakStore) Schema(elementType string) (*jsonschema.Schema, error) {
	if schema, ok := store.schemas[elementType]; ok {
		return schema, nil
	}
	return nil, errors.Wrap(errSchemaNotFound, elementType)
}

/* ################################
#   Intern
################################ */

func (store *LeakStore) rowsToElements(stmt *sqlite.Stmt) ([]JSONElement, error) {
	elements := []JSONElement{}
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Reset() // nolint:errcheck
			return nil, err
		}
		if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Reset()
}

func isElementTable(name string) bool {
	if strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "_") {
		return false
	}
	if name == "sqlar" || name == "elements" {
		return false
	}
	for _, suffix := range []string{"_data", "_idx", "_content", "_docsize", "_config"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// setupTypes loads the fields of existing views, so reopened stores keep
// their columns.
func (store *LeakStore) setupTypes() error {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return err
	}

	var names []string
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return err
		}
		if !hasRow {
			break
		}
		if name := stmt.GetText("name"); isElementTable(name) {
			names = append(names, name)
		}
	}
	if err := stmt.Reset(); err != nil {
		return err
	}

	for _, name := range names {
		pragmaStmt, err := store.cursor.Prepare(fmt.Sprintf("PRAGMA table_info (\"%s\")", name))
		if err != nil {
			return err
		}
		for {
			hasRow, err := pragmaStmt.Step()
			if err != nil {
				return err
			}
			if !hasRow {
				break
			}
			store.types.add(name, pragmaStmt.GetText("name"))
		}
		if err := pragmaStmt.Finalize(); err != nil {
			return err
		}
	}
	store.types.changed = false
	return nil
}

func (store *LeakStore) exec(query string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return err
	}
	return stmt.Reset()
}
