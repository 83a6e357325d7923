package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kjk/persons/backup"
	"github.com/kjk/persons/config"
	"github.com/kjk/persons/log"
	"github.com/kjk/persons/person"
	"github.com/kjk/persons/report"
	"github.com/kjk/persons/shell"
	"github.com/kjk/persons/store"
)

var (
	flgConfig  string
	flgData    string
	flgVerbose bool
	flgExport  string
	flgBackup  bool
)

func parseFlags() {
	flag.StringVar(&flgConfig, "config", "", "path to persons.yaml")
	flag.StringVar(&flgData, "data", "", "path to the database file, overrides data_path from config")
	flag.BoolVar(&flgVerbose, "verbose", false, "if true, log more")
	flag.StringVar(&flgExport, "export", "", "print all people as 'json' or 'toon' and exit")
	flag.BoolVar(&flgBackup, "backup", false, "upload a backup of the database file and exit")
	flag.Parse()
}

func exitIfErr(err error, format string, args ...any) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
	log.Errorf("%s: %s", msg, err)
	log.Close()
	os.Exit(1)
}

func export(people []*person.Person, format string) error {
	var d []byte
	var err error
	switch format {
	case "json":
		d, err = report.JSON(people)
	case "toon":
		d, err = report.TOON(people)
	default:
		return fmt.Errorf("unknown export format '%s' (must be json or toon)", format)
	}
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(d)
	return err
}

func main() {
	parseFlags()

	cfg, err := config.Load(flgConfig)
	exitIfErr(err, "failed to load config")
	if flgData != "" {
		cfg.DataPath = flgData
	}
	log.Verbose = cfg.Verbose || flgVerbose

	// the shell prints its own ui, log messages only go to the console
	// in verbose mode
	var logOut io.Writer = io.Discard
	if log.Verbose {
		logOut = os.Stderr
	}
	log.Init(&log.Config{
		Dir:       cfg.LogDir,
		Out:       logOut,
		EventsURL: cfg.EventsURL,
		APIKey:    cfg.EventsAPIKey,
	})
	defer log.Close()

	ctx := context.Background()

	app, err := shell.Open(store.New(cfg.DataPath))
	if app == nil {
		exitIfErr(err, "Unable to create a file database at '%s'. The program will now end", cfg.DataPath)
	}
	if err != nil {
		fmt.Printf("Failed to load existing records, starting fresh. Changes can't be saved until '%s' is fixed\n", cfg.DataPath)
		log.Errorf("loading '%s' failed: %s", cfg.DataPath, err)
	}

	// FromConfig limits how long it waits for the backup server
	app.Backup, err = backup.FromConfig(ctx, &cfg.Backup)
	if err != nil {
		// backups are nice to have, run without them
		fmt.Printf("Backups disabled: %s\n", err)
		log.Errorf("backup.FromConfig() failed: %s", err)
	}

	if flgExport != "" {
		err = export(app.People.Records(), flgExport)
		exitIfErr(err, "export failed")
		return
	}

	if flgBackup {
		if app.Backup == nil {
			exitIfErr(fmt.Errorf("backup is not enabled in config"), "backup failed")
		}
		remotePath, err := app.Backup.BackupFile(ctx, cfg.DataPath)
		exitIfErr(err, "backup failed")
		fmt.Printf("uploaded '%s' to %s as '%s'\n", cfg.DataPath, app.Backup.Target, remotePath)
		return
	}

	err = shell.New(os.Stdin, os.Stdout, app).Run(ctx)
	log.IfErrf(err)
}
