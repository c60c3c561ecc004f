package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ecephys-nwb/lims"
	"ecephys-nwb/logger"
	"ecephys-nwb/pipeline"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "Path to input JSON (ignored with --get-inputs-from-lims)")
		outputPath = flag.String("output", "", "Path for output JSON (defaults to stdout)")
		fromLIMS   = flag.Bool("get-inputs-from-lims", false, "Fetch input JSON from LIMS instead of a file")
		host       = flag.String("host", lims.DefaultHost, "LIMS host")
		sessionID  = flag.Int64("session-id", 0, "Session ID for LIMS input lookup")
		strategy   = flag.String("strategy", "", "LIMS strategy class")
		jobQueue   = flag.String("job-queue", "EPHYS_WRITE_NWB_QUEUE", "LIMS job queue name")
		outputRoot = flag.String("output-root", "", "Output root directory for LIMS input lookup")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --input input.json [--output output.json] | --get-inputs-from-lims --session-id 123 --output-root dir\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	raw, err := loadInput(*fromLIMS, *inputPath, *host, *sessionID, *strategy, *jobQueue, *outputRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: %v\n", err)
		os.Exit(1)
	}

	if err := pipeline.ValidateInput(raw); err != nil {
		// Echo the offending input so the caller can inspect it.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(raw)
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: invalid input: %v\n", err)
		os.Exit(1)
	}

	opts, err := pipeline.DecodeOptions(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: %v\n", err)
		os.Exit(1)
	}
	opts.Logger = logger.New(os.Stderr)
	defer opts.Logger.Sync()

	result, err := pipeline.Run(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: %v\n", err)
		os.Exit(1)
	}
	if err := pipeline.ValidateOutput(result); err != nil {
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: invalid output: %v\n", err)
		os.Exit(1)
	}

	if err := writeResult(*outputPath, result); err != nil {
		fmt.Fprintf(os.Stderr, "write_ecephys_nwb failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("write_ecephys_nwb complete\n")
	fmt.Printf("session file:        %s\n", result.NWBPath)
	for _, p := range result.ProbeOutputs {
		fmt.Printf("probe %d file:      %s\n", p.ID, p.NWBPath)
	}
}

func loadInput(fromLIMS bool, inputPath, host string, sessionID int64, strategy, jobQueue, outputRoot string) (any, error) {
	if fromLIMS {
		if sessionID == 0 {
			flag.Usage()
			os.Exit(2)
		}
		client := lims.NewClient(host)
		inputs, err := client.GetWriteNWBInputs(sessionID, strategy, jobQueue, outputRoot)
		if err != nil {
			return nil, err
		}
		return inputs, nil
	}

	if strings.TrimSpace(inputPath) == "" {
		flag.Usage()
		os.Exit(2)
	}
	buf, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", inputPath, err)
	}
	return raw, nil
}

func writeResult(path string, result *pipeline.Result) error {
	buf, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(buf))
		return nil
	}
	return os.WriteFile(path, append(buf, '\n'), 0o644)
}
