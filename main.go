package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/config"
	"github.com/aquasecurity/nvd-release-builder/database"
	"github.com/aquasecurity/nvd-release-builder/feed"
	"github.com/aquasecurity/nvd-release-builder/git"
	"github.com/aquasecurity/nvd-release-builder/utils"
)

var (
	date       = flag.String("date", "", "state of the database as a UTC date, e.g. 2024-01-10 (implies -fetch when empty)")
	fetch      = flag.Bool("fetch", false, "fetch the latest tags before proceeding")
	xzPreset   = flag.Int("xz-preset", feed.DefaultPreset, "xz compression preset (0-9)")
	feedName   = flag.String("feed-name", "", "feed to create: a year since 1999, all, recent or modified (all feeds when empty)")
	configPath = flag.String("config", "", "path to a YAML config file")
	verify     = flag.Bool("verify", false, "verify the archives in FEEDS_PATH against their metadata instead of building")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FEEDS_PATH\n", os.Args[0])
		flag.PrintDefaults()
	}
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return xerrors.New("FEEDS_PATH must be specified")
	}
	feedsPath := flag.Arg(0)

	cfg, err := config.Load(context.Background(), *configPath)
	if err != nil {
		return xerrors.Errorf("config error: %w", err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "xz-preset" {
			cfg.XZPreset = *xzPreset
		}
	})
	if err = cfg.Validate(); err != nil {
		return xerrors.Errorf("config error: %w", err)
	}

	w := feed.NewWriter(feedsPath, feed.WithPreset(cfg.XZPreset))
	if *verify {
		return verifyFeeds(w)
	}

	var names []feed.Name
	if *feedName != "" {
		name, err := feed.ParseName(*feedName)
		if err != nil {
			return xerrors.Errorf("invalid -feed-name, choose a year since %d or one of all, recent, modified: %w", feed.FirstYear, err)
		}
		names = append(names, name)
	}

	timestamp := time.Now().UTC()
	if *date == "" {
		*fetch = true
	} else {
		timestamp, err = dateparse.ParseIn(*date, time.UTC)
		if err != nil {
			return xerrors.Errorf("invalid -date: %w", err)
		}
	}
	timestamp = time.Date(timestamp.Year(), timestamp.Month(), timestamp.Day(), 0, 0, 0, 0, time.UTC)

	if err = utils.NewFs(afero.NewOsFs()).PrepareDir(feedsPath); err != nil {
		return xerrors.Errorf("specify a missing or empty FEEDS_PATH: %w", err)
	}

	dataset := git.NewDataset(cfg.CacheDir)
	exists, err := dataset.Exists()
	if err != nil {
		return xerrors.Errorf("dataset error: %w", err)
	}
	if !exists {
		if err = dataset.CloneBare(cfg.RepositoryURL); err != nil {
			return xerrors.Errorf("clone error: %w", err)
		}
	} else if *fetch {
		log.Println("Fetching repository")
		if err = dataset.Fetch(); err != nil {
			return xerrors.Errorf("fetch error: %w", err)
		}
	}

	log.Printf("Checking out repository for timestamp %s", timestamp.Format(time.DateOnly))
	if err = dataset.Checkout(timestamp); err != nil {
		return xerrors.Errorf("checkout error: %w", err)
	}
	snapshotTimestamp, err := dataset.CheckoutTimestamp()
	if err != nil {
		return xerrors.Errorf("checkout error: %w", err)
	}

	log.Printf("Loading records from %s", dataset.CheckoutDir)
	db, err := database.FromSnapshot(timestamp, snapshotTimestamp, database.NewDirLoader(afero.NewOsFs(), dataset.CheckoutDir))
	if err != nil {
		return xerrors.Errorf("database error: %w", err)
	}
	log.Printf("%d records", db.Len())

	if len(names) == 0 {
		names = feed.DefaultNames(db.Timestamp())
	}
	return writeFeeds(db, w, names)
}

func writeFeeds(db *database.Database, w feed.Writer, names []feed.Name) error {
	bar := pb.StartNew(len(names))
	defer bar.Finish()
	for _, name := range names {
		log.Printf("Creating %s archive", name)
		if _, err := w.Write(feed.Select(db, name)); err != nil {
			return xerrors.Errorf("unable to write the %s feed: %w", name, err)
		}
		bar.Increment()
	}
	return nil
}

func verifyFeeds(w feed.Writer) error {
	names, err := w.ListFeeds()
	if err != nil {
		return xerrors.Errorf("unable to list feeds: %w", err)
	}
	if len(names) == 0 {
		return xerrors.New("no feeds found")
	}
	for _, name := range names {
		meta, err := w.Verify(name)
		if err != nil {
			return xerrors.Errorf("verification error: %w", err)
		}
		log.Printf("%s: ok (%d bytes, sha256 %s)", name, meta.Size, meta.SHA256)
	}
	return nil
}
