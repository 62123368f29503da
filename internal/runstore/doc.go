// Package runstore keeps the history of pipeline runs in SQLite.
//
// Each run gets a row when it starts and is finalized with its status, final
// video and error message when it ends. Degradations absorbed during the run
// are stored alongside so `mmoto runs show` can list what went wrong after
// the project folder has been moved or deleted.
package runstore
