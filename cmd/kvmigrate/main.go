package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "kvmigrate: migrate kvapi data between storage backends\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Subcommands:\n")
	_, _ = fmt.Fprintf(os.Stderr, "  db       Copy users and entries from one storage backend to another\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Use 'kvmigrate <subcommand> -h' for help on a subcommand.\n")
}

func dbCmd(args []string) int {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	var (
		srcType   = fs.String("source-type", "", "Source storage type (badger, sqlite, mysql, postgres)")
		srcDir    = fs.String("source-dir", "", "Source data directory (for badger and sqlite)")
		srcDSN    = fs.String("source-dsn", "", "Source DSN (for mysql/postgres)")
		destType  = fs.String("dest-type", "", "Destination storage type (badger, sqlite, mysql, postgres)")
		destDir   = fs.String("dest-dir", "", "Destination data directory (for badger and sqlite)")
		destDSN   = fs.String("dest-dsn", "", "Destination DSN (for mysql/postgres)")
		dryRun    = fs.Bool("dry-run", false, "Perform a dry run without writing to destination")
		overwrite = fs.Bool("overwrite", false, "Write into a non-empty destination")
		v         = fs.Bool("v", false, "Verbose logging")
	)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(
			os.Stderr,
			"Usage: kvmigrate db --source-type=<type> [--source-dir=<dir>|--source-dsn=<dsn>] --dest-type=<type> [--dest-dir=<dir>|--dest-dsn=<dsn>] [--dry-run] [--overwrite] [--v]\n",
		)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *v {
		log.SetLevel(log.DebugLevel)
	}
	if *srcType == "" || *destType == "" {
		_, _ = fmt.Fprintln(os.Stderr, "--source-type and --dest-type are required")
		fs.Usage()
		return 2
	}
	src := endpoint{
		Type: *srcType,
		Dir:  *srcDir,
		DSN:  *srcDSN,
	}
	dst := endpoint{
		Type: *destType,
		Dir:  *destDir,
		DSN:  *destDSN,
	}
	if src == dst {
		_, _ = fmt.Fprintln(os.Stderr, "source and destination must differ")
		return 2
	}
	log.WithFields(
		log.Fields{
			"source-type": *srcType,
			"source-dir":  *srcDir,
			"dest-type":   *destType,
			"dest-dir":    *destDir,
			"dry-run":     *dryRun,
		},
	).Info("db migration requested")

	srcStore, err := src.open()
	if err != nil {
		log.WithError(err).Error("failed to open source")
		return 1
	}
	defer srcStore.Close()
	dstStore, err := dst.open()
	if err != nil {
		log.WithError(err).Error("failed to open destination")
		return 1
	}
	defer dstStore.Close()

	stats, err := migrate(srcStore, dstStore, *dryRun, *overwrite)
	if err != nil {
		log.WithError(err).Error("db migration failed")
		return 1
	}
	log.WithFields(
		log.Fields{
			"users":   stats.Users,
			"entries": stats.Entries,
		},
	).Info("db migration completed")
	return 0
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	var code int
	switch sub {
	case "db":
		code = dbCmd(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", sub)
		usage()
		code = 2
	}
	os.Exit(code)
}
