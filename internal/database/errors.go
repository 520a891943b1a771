package database

import "errors"

// ErrDatabaseNotFound is returned by Open when the database file does not
// exist and creation was not requested.
var ErrDatabaseNotFound = errors.New("database not found")

// ErrUnassessedScan is returned by SaveScanReport for a scan that did not
// reach its target. Storing it would make every earlier gap look resolved.
var ErrUnassessedScan = errors.New("scan did not reach its target")
