package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mpetrov/iris"
)

var (
	vllmServer = flag.String("vllm", "", "Address of an OpenAI-compatible serving endpoint, typically http://localhost:8000")
	useOpenAI  = flag.Bool("openai", false, "Use the hosted OpenAI API")
	model      = flag.String("model", "/models/qwen3vl_2b", "Model identifier to request")
	dbPath     = flag.String("db", "./iris.db", "Path to the caption catalog database")
	storePath  = flag.String("filestore", "./filestore", "Path to the upload filestore")
	httpPort   = flag.String("http", "8090", "Port for the HTTP front end")
	backfill   = flag.Bool("backfill", false, "Caption catalog entries that lack captions, then exit")
	count      = flag.Int("count", -1, "Limit the number of backfill items")
	verbose    = flag.Bool("v", false, "Verbose logging")

	lameduck bool
)

func run(ctx context.Context, ir *iris.Iris, logger *log.Logger) error {
	db, err := iris.NewDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	fs, err := iris.NewFilestore(*storePath)
	if err != nil {
		return err
	}

	svc := iris.NewService(ir.Client, iris.NewSessionStore(), logger)

	if *backfill {
		if !ir.IsHealthy() {
			logger.Warn("serving backend is not responding", "backend", ir.Name())
		}
		return runBackfill(ctx, svc, db, *model, ir.Name(), *count, logger)
	}

	srv := NewServer(svc, fs, db, ir.Client, *model, *httpPort, logger)
	logger.Info("listening", "port", *httpPort, "backend", ir.Name(), "model", *model)

	errch := make(chan error, 1)
	go func() { errch <- srv.Start() }()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	shutctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutctx)
}

func sighandler(ch chan os.Signal, cancel context.CancelFunc, logger *log.Logger) {
	for {
		<-ch
		if lameduck {
			// Already in lame duck, hard stop
			logger.Info("exiting")
			cancel()
			return
		}
		logger.Info("SIGINT received, stopping...")
		lameduck = true
		cancel()
	}
}

func main() {
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	apiKey := os.Getenv("IRIS_API_KEY")
	if apiKey == "" {
		apiKey = iris.NoAuthKey
	}

	ir, err := iris.Init(iris.InitOptions{
		VLLMServer: *vllmServer,
		OpenAI:     *useOpenAI,
		Model:      *model,
		APIKey:     apiKey,
		HttpClient: &http.Client{
			// Vision models on modest hardware are slow; allow long calls.
			Timeout: 360 * time.Second,
		},
	})
	if err != nil {
		logger.Fatal(err)
	}

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go sighandler(sigch, cancel, logger)

	if err := run(ctx, ir, logger); err != nil {
		logger.Fatal(err)
	}
}
