package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zephyrtronium/derivcalc"
	"github.com/zephyrtronium/derivcalc/internal/server"
)

func main() {
	var (
		inname, verb, mark string
		logLevel, serve    string
		config             string
		nl, steps, asJSON  bool
		echo               bool
	)
	flag.StringVar(&inname, "in", "", "input file (default stdin if no args given)")
	flag.StringVar(&verb, "fmt", "", "result formatting string (default shortest exact decimal)")
	flag.StringVar(&mark, "mark", "**", "marker placed around the rewritten symbol in each step")
	flag.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flag.StringVar(&serve, "serve", "", "serve HTTP on this address instead of evaluating input")
	flag.StringVar(&config, "config", "", "YAML or TOML server configuration file (implies -serve)")
	flag.BoolVar(&nl, "n", false, "treat separate input lines as separate expressions")
	flag.BoolVar(&steps, "steps", false, "print the leftmost derivation of each expression")
	flag.BoolVar(&asJSON, "json", false, "print each result as a JSON object")
	flag.BoolVar(&echo, "echo", false, "print parse trees")
	flag.Parse()

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("service", "derivcalc").Logger().
		Level(level)

	marker := derivcalc.MarkWith(mark, mark)
	if serve != "" || config != "" {
		cfg := server.DefaultConfig()
		if config != "" {
			cfg, err = server.LoadConfig(config)
			if err != nil {
				logger.Fatal().Err(err).Msg("loading config")
			}
		}
		if serve != "" {
			cfg.Addr = serve
		}
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "mark" {
				cfg.Marker = marker
			}
		})
		os.Exit(runServer(cfg, logger))
	}

	srcs, err := inputs(inname, flag.Args(), nl)
	if err != nil {
		logger.Fatal().Err(err).Msg("reading input")
	}

	code := 0
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, src := range srcs {
		res := derivcalc.EvaluateExpression(src, derivcalc.WithLogger(logger), marker)
		if !res.Success {
			code = 1
		}
		if asJSON {
			if err := enc.Encode(server.NewResponse(src, res)); err != nil {
				logger.Fatal().Err(err).Msg("writing output")
			}
			continue
		}
		if echo {
			if e, err := derivcalc.ParseString(src); err == nil {
				fmt.Printf("%v : ", e)
			}
		}
		switch {
		case !res.Success:
			for _, msg := range res.Errors {
				fmt.Println(msg)
			}
		case verb != "":
			fmt.Printf(verb+"\n", res.Value)
		default:
			fmt.Println(derivcalc.FormatValue(res.Value))
		}
		if steps {
			for _, s := range res.Steps {
				fmt.Printf("%4d. %s\n", s.Index, s.Production)
			}
		}
	}
	os.Exit(code)
}

func runServer(cfg server.Config, logger zerolog.Logger) int {
	shutdown, err := server.InitTracer("derivcalc")
	if err != nil {
		logger.Error().Err(err).Msg("failed to init tracer")
		return 1
	}
	defer shutdown(context.Background())

	srv := server.NewServer(cfg, logger)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		return 1
	}
	return 0
}

// inputs collects the expressions to evaluate. Each argument is one
// expression. The input file is one expression, or one per non-blank line
// if nl is set.
func inputs(inname string, args []string, nl bool) ([]string, error) {
	var srcs []string
	f, err := infile(inname, len(args) == 0)
	if err != nil {
		return nil, err
	}
	if f != nil {
		defer f.Close()
		if nl {
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				if line := sc.Text(); strings.TrimSpace(line) != "" {
					srcs = append(srcs, line)
				}
			}
			if err := sc.Err(); err != nil {
				return nil, err
			}
		} else {
			b, err := io.ReadAll(f)
			if err != nil {
				return nil, err
			}
			srcs = append(srcs, string(b))
		}
	}
	return append(srcs, args...), nil
}

func infile(inname string, std bool) (io.ReadCloser, error) {
	switch {
	case inname != "" && inname != "-":
		return os.Open(inname)
	case inname == "-", std:
		return io.NopCloser(os.Stdin), nil
	}
	return nil, nil
}
