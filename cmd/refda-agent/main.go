// Command refda-agent is the reference AMP agent binary, per spec
// section 6.2: a flag-driven process binding a UNIX-domain datagram
// transport, registering the base reflection ADMs, and running the
// ingress/execution/rule/reporting/egress worker set until signalled.
//
// Grounded in the teacher's cmd/main.go: flag.Parse into a small set of
// named flags, a stdlib logger wired through the whole process, and a
// signal.Notify-driven graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtn-amp/agent/internal/adm/agentacl"
	"github.com/dtn-amp/agent/internal/adm/agentadm"
	"github.com/dtn-amp/agent/internal/adm/ammbase"
	"github.com/dtn-amp/agent/internal/adm/netbase"
	"github.com/dtn-amp/agent/internal/adminrpc"
	dtnagent "github.com/dtn-amp/agent/internal/agent"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/report"
	"github.com/dtn-amp/agent/internal/store"
	"github.com/dtn-amp/agent/internal/transport"
)

// Exit codes, exactly as enumerated in spec section 6.2.
const (
	exitOK = iota
	exitUsage
	exitWorkerStartup
	exitStartupTargetFailure
	exitTransportBindFailure
)

const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr *os.File) int {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("l", "info", "log level: debug|info|warning|err|crit")
	listenAddr := fs.String("a", "", "listen address (UNIX datagram socket path); mandatory")
	helloAddr := fs.String("m", "", "send a hello report to this address at startup")
	startupFile := fs.String("s", "", "file of text-form ARIs to run as startup targets, one per line")
	adminAddr := fs.String("admin", "", "optional administrative gRPC listen address (host:port); disabled if empty")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: agent [-h] [-l <log-level>] -a <listen-addr> [-m <hello-addr>] [-s <startup-file>] [-admin <host:port>]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *listenAddr == "" {
		fmt.Fprintln(stderr, "agent: -a <listen-addr> is mandatory")
		fs.Usage()
		return exitUsage
	}
	sev, ok := dtnagent.ParseSeverity(*logLevel)
	if !ok {
		fmt.Fprintf(stderr, "agent: unrecognized log level %q\n", *logLevel)
		return exitUsage
	}

	logger := dtnagent.NewStderrLogger(stderr, sev)
	defer logger.Close()

	tr, err := transport.ListenUnixgram(*listenAddr)
	if err != nil {
		fmt.Fprintf(stderr, "agent: bind %s: %v\n", *listenAddr, err)
		return exitTransportBindFailure
	}
	defer tr.Close()

	s := store.New()
	ammbase.Register(s)
	netbase.Register(s)

	a := dtnagent.New(s, tr, tr, logger)
	agentadm.Register(s, a.Exec, a)
	agentacl.Register(s, a.ACL)
	a.DefaultReportDest = *helloAddr

	if _, err := store.Bind(s, []store.RequiredBase{
		{Org: ammbase.Org, Model: ammbase.Model, Name: "mac"},
		{Org: ammbase.Org, Model: ammbase.Model, Name: "expr"},
		{Org: ammbase.Org, Model: ammbase.Model, Name: "rptt"},
	}); err != nil {
		fmt.Fprintf(stderr, "agent: binding failed: %v\n", err)
		return exitWorkerStartup
	}

	var adminSrv *adminrpc.GracefulServer
	if *adminAddr != "" {
		adminSrv = adminrpc.NewGracefulServer(adminrpc.NewServer(a), *adminAddr)
		if _, err := adminSrv.StartBackground(); err != nil {
			fmt.Fprintf(stderr, "agent: admin listen %s: %v\n", *adminAddr, err)
			return exitTransportBindFailure
		}
		defer adminSrv.ShutdownWithTimeout(shutdownGrace)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		a.Run(ctx)
	}()

	if *helloAddr != "" {
		helloRef := ari.ObjRef(ari.ObjectPath{
			Org: ari.NameIdent(agentadm.Org), Model: ari.NameIdent(agentadm.Model),
			Type: ari.ObjConst, Obj: ari.NameIdent("hello"),
		})
		a.QueueReport(*helloAddr, ari.Undefined(), report.Template{
			Source: helloRef,
			Items:  []report.TemplateItem{{Source: helloRef}},
		})
	}

	if *startupFile != "" {
		targets, err := readStartupFile(*startupFile)
		if err != nil {
			fmt.Fprintf(stderr, "agent: reading startup file: %v\n", err)
			stop()
			<-runDone
			return exitStartupTargetFailure
		}
		if err := dtnagent.RunStartup(dtnagent.WithInternal(ctx), a, targets); err != nil {
			fmt.Fprintf(stderr, "agent: startup target failed: %v\n", err)
			stop()
			<-runDone
			return exitStartupTargetFailure
		}
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(stderr, "agent: shutdown: %v\n", err)
	}
	<-runDone
	return exitOK
}

func readStartupFile(path string) ([]ari.ARI, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []ari.ARI
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		a, err := ari.ParseText(line)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", line, err)
		}
		targets = append(targets, a)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}
