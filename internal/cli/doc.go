// Package cli implements the planctl command tree.
//
// Every command reads its settings from the environment (see Config and the
// PLAN_*, PG_*, MONGODB_*, REDIS_* and HTTP_* variables), optionally from a
// .env file, and prints results as indented JSON on stdout. Logs go to stderr.
package cli
