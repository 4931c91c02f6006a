// Command stegoz4x is a thin CLI adapter around the stegoz4x package: it
// owns file handles, flag parsing, and verbose logging so the core
// packages never have to.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/harriteja/stegoz4x"
)

func main() {
	decompress := flag.Bool("d", false, "decompress instead of compressing")
	hiddenPath := flag.String("i", "", "hidden data file path (read on compress, written on decompress)")
	preferHidden := flag.Bool("p", false, "prefer hidden-data capacity over compression ratio; must match on decompress")
	count := flag.Bool("c", false, "print how many bytes of hidden data the frame can carry")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	if verbose != nil && *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: stegoz4x [flags] INPUT OUTPUT")
		flag.PrintDefaults()
		os.Exit(2)
	}
	input, output := args[0], args[1]

	var err error
	if *decompress {
		err = runDecompress(input, output, *hiddenPath, *preferHidden)
	} else {
		err = runCompress(input, output, *hiddenPath, *count, *preferHidden)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "stegoz4x: %v\n", err)
		os.Exit(1)
	}
}

func runCompress(inputPath, outputPath, hiddenPath string, count, preferHidden bool) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var hidden []byte
	if hiddenPath != "" {
		hidden, err = os.ReadFile(hiddenPath)
		if err != nil {
			return err
		}
	}

	c, err := stegoz4x.NewCompressor(out, hidden, preferHidden)
	if err != nil {
		return err
	}

	buf := make([]byte, 4*1024*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := c.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				return rerr
			}
			break
		}
	}

	available, err := c.Finish()
	if err != nil {
		return err
	}
	if count {
		fmt.Fprintf(os.Stderr, "available hidden data bytes: %d\n", available)
	}
	return nil
}

func runDecompress(inputPath, outputPath, hiddenPath string, preferHidden bool) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	d := stegoz4x.NewDecompressor(in, preferHidden)

	buf := make([]byte, 4*1024*1024)
	for {
		n, rerr := d.Read(buf)
		if rerr != nil {
			return rerr
		}
		if n == 0 {
			break
		}
		if _, werr := out.Write(buf[:n]); werr != nil {
			return werr
		}
	}

	if hiddenPath != "" {
		if err := os.WriteFile(hiddenPath, d.Finish(), 0o644); err != nil {
			return err
		}
	}
	return nil
}
