// Package backup locates backup artifacts on disk and restores them into a
// database by replaying the dump statement by statement.
package backup
