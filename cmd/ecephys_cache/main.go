package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ecephys-nwb/cache"
	"ecephys-nwb/lims"
)

func main() {
	var (
		cacheDir  = flag.String("manifest", "", "Cache base directory")
		host      = flag.String("host", lims.DefaultHost, "Fetch host")
		sessionID = flag.Int64("session-id", 0, "Fetch one session's data file instead of the listing")
		format    = flag.String("sessions-format", "csv", "Session listing format: csv|parquet")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --manifest dir [--session-id 123] [--sessions-format csv|parquet]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*cacheDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	c := cache.NewSessionCache(*cacheDir, lims.NewClient(*host))
	c.SessionsFormat = *format

	if *sessionID != 0 {
		io, err := c.GetSessionData(*sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ecephys_cache failed: %v\n", err)
			os.Exit(1)
		}
		defer io.Close()
		fmt.Printf("ecephys_cache complete\n")
		fmt.Printf("session %d file:   %s\n", *sessionID, io.Path())
		return
	}

	sessions, err := c.GetSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ecephys_cache failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ecephys_cache complete\n")
	fmt.Printf("session listing:     %s\n", c.SessionsPath())
	for _, s := range sessions {
		fmt.Printf("session %d:         %s (%d probes, %d units)\n", s.ID, s.SessionType, s.ProbeCount, s.UnitCount)
	}
}
