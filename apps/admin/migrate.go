package main

import (
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/shule/fs"
)

// migrationsDir is the directory of the embedded SQL migrations.
const migrationsDir = "migrations"

var gooseRunFunc = goose.RunFS // mockable

// migrate runs a goose command (args[0]) against the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, appfs.FS, migrationsDir, args[1:]...)
}
