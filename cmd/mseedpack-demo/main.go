// Command mseedpack-demo is a thin CLI wrapper around the mseedpack
// library: it builds one LogicalRecord from flags and a flat file of
// newline-separated integer samples, then writes the packed records to
// an output file. The command-line driver and file I/O are explicitly
// out of scope for the packer itself (spec.md §1); this is demo wiring
// only, never imported by the core packer packages.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/fdsn-go/mseedpack"
	"github.com/fdsn-go/mseedpack/logging"
)

type options struct {
	SID      string  `short:"s" long:"sid" description:"FDSN source identifier" default:"FDSN:XX_TEST__X_Y_Z"`
	Start    string  `long:"start" description:"start time, RFC3339" default:"2012-01-01T00:00:00Z"`
	Rate     float64 `short:"r" long:"rate" description:"sample rate in Hz (negative = seconds/sample)" default:"1.0"`
	Encoding int     `short:"e" long:"encoding" description:"sample encoding (0=TEXT,1=INT16,3=INT32,4=FLOAT32,5=FLOAT64,10=STEIM1,11=STEIM2)" default:"11"`
	RecLen   int     `long:"reclen" description:"max record length" default:"4096"`
	Version  int     `long:"version" description:"miniSEED format version (2 or 3)" default:"3"`
	Flush    bool    `long:"flush" description:"emit the trailing partial record"`
	Input    string  `short:"i" long:"input" description:"file of newline-separated int32 samples" required:"true"`
	Output   string  `short:"o" long:"output" description:"output file for packed records" required:"true"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	samples, err := readSamples(opts.Input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mseedpack-demo:", err)
		os.Exit(1)
	}

	start, err := time.Parse(time.RFC3339, opts.Start)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mseedpack-demo: bad start time:", err)
		os.Exit(1)
	}

	lr := &mseedpack.LogicalRecord{
		SID:                opts.SID,
		PublicationVersion: 1,
		StartTime:          start.UnixNano(),
		SampleRate:         opts.Rate,
		Encoding:           mseedpack.Encoding(opts.Encoding),
		MaxRecordLength:    opts.RecLen,
		FormatVersion:      opts.Version,
		SampleType:         mseedpack.SampleInt32,
		Int32Samples:       samples,
		NumSamples:         len(samples),
	}

	out, err := os.Create(opts.Output)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mseedpack-demo:", err)
		os.Exit(1)
	}
	defer out.Close()

	logger := logging.NewLogrus(nil)
	packer := mseedpack.NewPacker(logger)

	packOpts := mseedpack.DefaultPackOptions()
	if opts.Flush {
		packOpts.Flags |= mseedpack.FlushData
	}

	n, err := packer.PackRecords(lr, func(record []byte, _ interface{}) {
		if _, werr := out.Write(record); werr != nil {
			logger.Errorf("mseedpack-demo: write record: %v", werr)
		}
	}, packOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mseedpack-demo: pack failed:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d record(s) to %s\n", n, opts.Output)
}

func readSamples(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []int32
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing sample %q: %w", line, err)
		}
		samples = append(samples, int32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
