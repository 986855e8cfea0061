package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/readline"
	"github.com/getsentry/sentry-go"
	syncv3client "github.com/matrix-org/sliding-sync-client"
	"github.com/matrix-org/sliding-sync-client/devtools"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/render"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var GitCommit string

const version = "0.1.0"

const (
	// Required fields
	EnvServer = "SYNCV3_SERVER"
	EnvToken  = "SYNCV3_TOKEN"

	// Optional fields
	EnvBindAddr     = "SYNCV3_BINDADDR"
	EnvPrometheus   = "SYNCV3_PROM"
	EnvDebug        = "SYNCV3_DEBUG"
	EnvLogLevel     = "SYNCV3_LOG_LEVEL"
	EnvSentryDsn    = "SYNCV3_SENTRY_DSN"
	EnvOTLP         = "SYNCV3_OTLP_URL"
	EnvOTLPUsername = "SYNCV3_OTLP_USERNAME"
	EnvOTLPPassword = "SYNCV3_OTLP_PASSWORD"
	EnvDebounceMS   = "SYNCV3_DEBOUNCE_MS"
	EnvTimeoutMS    = "SYNCV3_TIMEOUT_MS"
	EnvCBORDump     = "SYNCV3_CBOR_DUMP"
)

var helpMsg = fmt.Sprintf(`
Environment var
%s        Required. The sliding sync server to talk to e.g 'https://slidingsync.lab.matrix.org'
%s         Required. The access token of the account to sync.
%s      Default: unset. The bind addr for the debug HTTP server e.g ':8009'. If not set, does not listen.
%s          Default: unset. The bind addr for Prometheus metrics, which will be accessible at /metrics at this address.
%s         Default: unset. Set to '1' to panic on invariant failures and log at trace level.
%s     Default: info. The zerolog level: trace, debug, info, warn, error.
%s    Default: unset. The Sentry DSN to report errors to.
%s      Default: unset. The OTLP HTTP URL to send spans to e.g 'https://localhost:4318'.
%s Default: unset. The username for OTLP basic auth.
%s Default: unset. The password for OTLP basic auth.
%s    Default: 100. How long visibility must be stable before new ranges are requested.
%s     Default: 20000. The long-poll timeout sent to the server.
%s      Default: unset. A file to append a CBOR frame to after every sync cycle.
`, EnvServer, EnvToken, EnvBindAddr, EnvPrometheus, EnvDebug, EnvLogLevel, EnvSentryDsn, EnvOTLP,
	EnvOTLPUsername, EnvOTLPPassword, EnvDebounceMS, EnvTimeoutMS, EnvCBORDump)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

func defaulting(in, dft string) string {
	if in == "" {
		return dft
	}
	return in
}

func millis(args map[string]string, key string) time.Duration {
	ms, err := strconv.Atoi(args[key])
	if err != nil || ms < 0 {
		fmt.Print(helpMsg)
		fmt.Printf("\n%s must be a positive number of milliseconds, got %q\n", key, args[key])
		os.Exit(1)
	}
	return time.Duration(ms) * time.Millisecond
}

func main() {
	fmt.Printf("Sliding sync client [%s] (%s)\n", version, GitCommit)
	transport.ClientVersion = fmt.Sprintf("%s (%s)", version, GitCommit)
	args := map[string]string{
		EnvServer:       os.Getenv(EnvServer),
		EnvToken:        os.Getenv(EnvToken),
		EnvBindAddr:     os.Getenv(EnvBindAddr),
		EnvPrometheus:   os.Getenv(EnvPrometheus),
		EnvDebug:        os.Getenv(EnvDebug),
		EnvLogLevel:     defaulting(os.Getenv(EnvLogLevel), "info"),
		EnvSentryDsn:    os.Getenv(EnvSentryDsn),
		EnvOTLP:         os.Getenv(EnvOTLP),
		EnvOTLPUsername: os.Getenv(EnvOTLPUsername),
		EnvOTLPPassword: os.Getenv(EnvOTLPPassword),
		EnvDebounceMS:   defaulting(os.Getenv(EnvDebounceMS), "100"),
		EnvTimeoutMS:    defaulting(os.Getenv(EnvTimeoutMS), strconv.Itoa(sync3.DefaultTimeoutMSecs)),
		EnvCBORDump:     os.Getenv(EnvCBORDump),
	}
	requiredEnvVars := []string{EnvServer, EnvToken}
	for _, requiredEnvVar := range requiredEnvVars {
		if args[requiredEnvVar] == "" {
			fmt.Print(helpMsg)
			fmt.Printf("\n%s is not set", requiredEnvVar)
			fmt.Printf("\n%s must be set\n", strings.Join(requiredEnvVars, ", "))
			os.Exit(1)
		}
	}

	level, err := zerolog.ParseLevel(args[EnvLogLevel])
	if err != nil {
		fmt.Print(helpMsg)
		fmt.Printf("\n%s: %s\n", EnvLogLevel, err)
		os.Exit(1)
	}
	if args[EnvDebug] == "1" {
		level = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(level)

	if args[EnvSentryDsn] != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     args[EnvSentryDsn],
			Release: version,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialise sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}
	if args[EnvOTLP] != "" {
		shutdown, err := internal.ConfigureOTLP(args[EnvOTLP], args[EnvOTLPUsername], args[EnvOTLPPassword], version)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure OTLP")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to flush spans")
			}
		}()
	}
	enablePrometheus := args[EnvPrometheus] != ""
	if enablePrometheus && args[EnvPrometheus] != args[EnvBindAddr] {
		go func() {
			fmt.Printf("Starting prometheus listener on %s\n", args[EnvPrometheus])
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(args[EnvPrometheus], mux); err != nil {
				panic(err)
			}
		}()
	}

	var dump io.Writer
	if args[EnvCBORDump] != "" {
		f, err := os.OpenFile(args[EnvCBORDump], os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Fatal().Err(err).Str("file", args[EnvCBORDump]).Msg("failed to open CBOR dump")
		}
		defer f.Close()
		dump = f
	}
	recorder := devtools.NewRecorder(dump, nil)

	isDM, isGroup := true, false
	lists := []*sync3.List{
		sync3.NewList("Direct Messages", sync3.RequestFilters{IsDM: &isDM}),
		sync3.NewList("Group Chats", sync3.RequestFilters{IsDM: &isGroup}),
	}
	timeout := millis(args, EnvTimeoutMS)
	conn := transport.NewConnection()
	engine := transport.NewEngine(
		transport.NewHTTPClient(internal.ServerURL{HttpOrUnixStr: args[EnvServer]}, timeout),
		conn, lists, timeout, nil, enablePrometheus,
	)
	defer engine.Teardown()
	scr := newScreen()
	client := syncv3client.Setup(lists, conn, engine, syncv3client.Opts{
		DebounceDelay:    millis(args, EnvDebounceMS),
		Presenter:        render.NewPresenter(args[EnvServer]),
		Observer:         scr,
		Recorder:         recorder,
		EnablePrometheus: enablePrometheus,
	})
	defer client.Teardown()
	engine.AddLifecycleListener(client.OnLifecycle)
	engine.AddRoomDataListener(client.OnRoomData)

	if args[EnvBindAddr] != "" {
		withMetrics := enablePrometheus && args[EnvPrometheus] == args[EnvBindAddr]
		go syncv3client.RunDebugServer(syncv3client.NewDebugHandler(client, recorder, withMetrics), args[EnvBindAddr])
	}

	// slots appear as lists fill in, tell the client which of them are on screen
	go func() {
		for range time.Tick(50 * time.Millisecond) {
			scr.report(client)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "> ",
		AutoComplete:        completer,
		InterruptPrompt:     "^C",
		EOFPrompt:           "quit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open terminal")
	}
	defer rl.Close()

	client.Start(args[EnvToken])
	fmt.Print(helpText)
	if err := readCommands(client, scr, len(lists), rl, os.Stdout); err != nil {
		logger.Err(err).Msg("failed to read commands")
	}
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("scroll"),
	readline.PcItem("filter"),
	readline.PcItem("select"),
	readline.PcItem("show"),
	readline.PcItem("room"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

type lineReader interface {
	Readline() (string, error)
}

// readCommands runs commands until the user quits or the input ends.
func readCommands(c commander, scr *screen, numLists int, in lineReader, out io.Writer) error {
	for {
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) != 0 {
				continue
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		err = runCommand(c, scr, numLists, line, out)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
		}
	}
}
