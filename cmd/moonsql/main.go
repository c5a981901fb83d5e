package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/YilianFengyue/moonsql/pkg/ast"
	"github.com/YilianFengyue/moonsql/pkg/catalog"
	"github.com/YilianFengyue/moonsql/pkg/config"
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/exec"
	"github.com/YilianFengyue/moonsql/pkg/lexer"
	"github.com/YilianFengyue/moonsql/pkg/logger"
	"github.com/YilianFengyue/moonsql/pkg/parser"
	"github.com/YilianFengyue/moonsql/pkg/plan"
	"github.com/YilianFengyue/moonsql/pkg/sem"
	"github.com/YilianFengyue/moonsql/pkg/storage"
)

const banner = `
 ███╗   ███╗ ██████╗  ██████╗ ███╗   ██╗███████╗ ██████╗ ██╗
 ████╗ ████║██╔═══██╗██╔═══██╗████╗  ██║██╔════╝██╔═══██╗██║
 ██╔████╔██║██║   ██║██║   ██║██╔██╗ ██║███████╗██║   ██║██║
 ██║╚██╔╝██║██║   ██║██║   ██║██║╚██╗██║╚════██║██║▄▄ ██║██║
 ██║ ╚═╝ ██║╚██████╔╝╚██████╔╝██║ ╚████║███████║╚██████╔╝███████╗
 ╚═╝     ╚═╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═══╝╚══════╝ ╚══▀▀═╝ ╚══════╝

 a pedagogical page-organized relational engine
`

func main() {
	var (
		dbDir     = flag.String("db", envOr("MOONSQL_DATA_DIR", "./data"), "data directory")
		configPath = flag.String("config", "", "YAML config file")
		sqlText   = flag.String("sql", "", "single SQL statement to run")
		sqlFile   = flag.String("file", "", "path to a .sql script of ;-terminated statements")
		show      = flag.String("show", "result", "comma-separated views: token,ast,sem,plan,result,bufferpool")
		policy    = flag.String("policy", "", "override replacement policy: lru|fifo")
		poolSize  = flag.Int("pool-size", 0, "override buffer pool frame count")
		verbose   = flag.Bool("verbose", false, "bump log level to debug")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config %q: %v\n", *configPath, err)
		cfg = config.DefaultConfig()
	}
	if *dbDir != "" {
		cfg.Storage.DataDir = *dbDir
	}
	if *policy != "" {
		cfg.Storage.ReplacementPolicy = *policy
	}
	if *poolSize > 0 {
		cfg.Storage.BufferPoolSize = *poolSize
	}

	logger.Init(cfg.Logging.Level, *verbose)

	eng, err := bootstrap(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	views := strings.Split(*show, ",")

	switch {
	case *sqlText != "":
		runScript(eng, *sqlText, views)
	case *sqlFile != "":
		content, err := os.ReadFile(*sqlFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		runScript(eng, string(content), views)
	default:
		fmt.Print(banner)
		runREPL(eng, views)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// engine bundles the wiring needed to compile and run one statement at a
// time (spec §5: single-threaded cooperative execution, one plan at a
// time).
type engine struct {
	fm     *storage.FileManager
	pool   *storage.BufferPool
	cat    *catalog.Catalog
	sem    *sem.Analyzer
	planner *plan.Planner
	exec   *exec.Executor
	cfg    *config.Config
}

func bootstrap(cfg *config.Config) (*engine, error) {
	fm, err := storage.NewFileManager(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	pool := storage.NewBufferPool(fm, cfg.Storage.BufferPoolSize, storage.NewPolicy(cfg.Storage.ReplacementPolicy))
	se := storage.NewEngine(fm, pool)
	cat, err := catalog.Open(se, fm)
	if err != nil {
		return nil, err
	}
	cat.CheckDrift(cfg.Storage.DataDir)

	return &engine{
		fm:      fm,
		pool:    pool,
		cat:     cat,
		sem:     sem.New(cat),
		planner: plan.New(cat.GetSchema),
		exec:    exec.New(cat),
		cfg:     cfg,
	}, nil
}

func runREPL(e *engine, views []string) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("moonsql> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("moonsql> ")
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		runScript(e, line, views)
		fmt.Print("moonsql> ")
	}
}

func shows(views []string, name string) bool {
	for _, v := range views {
		if strings.TrimSpace(v) == name {
			return true
		}
	}
	return false
}

// runScript compiles and executes every ;-terminated statement in src in
// order, printing the requested views and exiting on the first error per
// spec §6's exit code table.
func runScript(e *engine, src string, views []string) {
	if shows(views, "token") {
		toks, lexErrs := lexer.Tokenize(src)
		pp.Println(toks)
		if len(lexErrs) > 0 {
			reportAndExit(lexErrs[0])
		}
	}

	stmts, parseErrs := parser.ParseScript(src)
	if len(parseErrs) > 0 {
		reportAndExit(parseErrs[0])
	}

	if shows(views, "ast") {
		pp.Println(stmts)
	}

	for _, stmt := range stmts {
		runStatement(e, stmt, views)
	}
}

func runStatement(e *engine, stmt ast.Statement, views []string) {
	if semErrs := e.sem.Check(stmt); len(semErrs) > 0 {
		reportAndExit(semErrs[0])
	}
	if shows(views, "sem") {
		fmt.Printf("-- resolved: %s\n", stmt.String())
	}

	node, err := e.planner.Lower(stmt)
	if err != nil {
		reportAndExit(err)
	}
	if shows(views, "plan") {
		pp.Println(node)
	}

	result, err := e.exec.Execute(node)
	if err != nil {
		reportAndExit(err)
	}
	if shows(views, "result") {
		printResult(result)
	}
	if shows(views, "bufferpool") {
		pp.Println(e.pool.Stats())
	}
}

func printResult(r *exec.Result) {
	if r.Columns == nil {
		fmt.Printf("OK (%d)\n", r.Count)
		return
	}
	fmt.Println(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Println(strings.Join(cells, " | "))
	}
}

// reportAndExit prints the §6 {phase,kind,line,col,message} JSON error
// record and exits with the matching code.
func reportAndExit(err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		data, marshalErr := json.Marshal(e)
		if marshalErr != nil {
			fmt.Fprintln(os.Stderr, e.Error())
		} else {
			fmt.Fprintln(os.Stderr, string(data))
		}
		os.Exit(e.ExitCode())
	}
	slog.Error("unclassified failure", "error", err)
	os.Exit(1)
}
