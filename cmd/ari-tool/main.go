// Command ari-tool converts ARIs between text form and CBOR hex form,
// supplementing spec section 4.3's "text-form ARIs for startup files,
// logs, and test vectors" with the small converter those files imply
// but spec.md never names as a deliverable binary.
//
// Grounded in cmd/envelope/main.go's separate-debugging-binary pattern:
// a subcommand dispatch reading one value per stdin line and writing
// one converted value per stdout line, so it composes with shell
// pipelines the same way the teacher's envelope tool does.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/dtn-amp/agent/internal/ari"
)

const (
	cmdToCBOR = "to-cbor"
	cmdToText = "to-text"
	cmdVersion = "version"
)

// Version is the tool's own release tag, independent of the agent's
// protocol version (internal/msg.Version).
const Version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case cmdToCBOR:
		runToCBOR(os.Stdin, os.Stdout)
	case cmdToText:
		runToText(os.Stdin, os.Stdout)
	case cmdVersion:
		fmt.Fprintln(os.Stdout, Version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: ari-tool <command>

Commands:
  to-cbor   Read text-form ARIs from stdin (one per line), write CBOR hex to stdout
  to-text   Read CBOR-hex ARIs from stdin (one per line), write text form to stdout
  version   Print the tool version`)
}

func runToCBOR(in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	exit := 0
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		a, err := ari.ParseText(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ari-tool: parse %q: %v\n", line, err)
			exit = 1
			continue
		}
		fmt.Fprintln(out, hex.EncodeToString(ari.Encode(a)))
	}
	if exit != 0 {
		os.Exit(exit)
	}
}

func runToText(in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	exit := 0
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ari-tool: decode hex %q: %v\n", line, err)
			exit = 1
			continue
		}
		a, n, err := ari.Decode(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ari-tool: decode cbor %q: %v\n", line, err)
			exit = 1
			continue
		}
		if n != len(raw) {
			fmt.Fprintf(os.Stderr, "ari-tool: %d trailing bytes after decoding %q\n", len(raw)-n, line)
		}
		text, err := ari.FormatText(a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ari-tool: format %q: %v\n", line, err)
			exit = 1
			continue
		}
		fmt.Fprintln(out, text)
	}
	if exit != 0 {
		os.Exit(exit)
	}
}
