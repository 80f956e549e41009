// Command staticlint runs the repository's static checks as one multichecker.
//
// It combines the go/analysis passes that catch mistakes common in this
// code (HTTP responses, contexts, error wrapping, locks copied by value,
// shadowed variables), the SA class of staticcheck plus the stylecheck and
// simple checks listed in config.json, bodyclose, errcheck, go-critic and two
// repository analyzers:
//
//	osexitcheck - os.Exit called directly in main.main
//	defaultclientcheck - requests sent through http.DefaultClient, which has
//	no timeout; gateway calls go through a configured client
//
// Usage:
//
//	go build -o cmd/staticlint/staticlint ./cmd/staticlint
//	cmd/staticlint/staticlint ./...
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-critic/go-critic/checkers/analyzer"
	"github.com/kisielk/errcheck/errcheck"
	"github.com/timakin/bodyclose/passes/bodyclose"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/defers"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/testinggoroutine"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/quickfix"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"
)

// Config is the name of the file listing the enabled non-SA staticcheck analyzers.
const Config = `config.json`

// defaultStaticcheck is used when config.json is missing or unreadable.
var defaultStaticcheck = []string{"ST1005", "ST1000", "ST1020", "ST1013", "S1008", "S1021"}

// ConfigData is the layout of config.json.
type ConfigData struct {
	Staticcheck []string
}

var mychecks []*analysis.Analyzer

// appendChecks adds every SA analyzer and the ones named in checks.
func appendChecks(analyzers []*lint.Analyzer, checks map[string]bool) {
	for _, v := range analyzers {
		if strings.HasPrefix(v.Analyzer.Name, "SA") || checks[v.Analyzer.Name] {
			mychecks = append(mychecks, v.Analyzer)
		}
	}
}

func appendPassesChecks() {
	mychecks = []*analysis.Analyzer{
		copylock.Analyzer,
		defers.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilfunc.Analyzer,
		printf.Analyzer,
		shadow.Analyzer,
		structtag.Analyzer,
		testinggoroutine.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		unusedresult.Analyzer,
	}
}

func appendStaticcheckIoChecks(checks map[string]bool) {
	appendChecks(staticcheck.Analyzers, checks)
	appendChecks(stylecheck.Analyzers, checks)
	appendChecks(simple.Analyzers, checks)
	appendChecks(quickfix.Analyzers, checks)
}

func appendOtherPublicChecks() {
	mychecks = append(mychecks, bodyclose.Analyzer, errcheck.Analyzer, analyzer.Analyzer)
}

func appendCustomChecks() {
	mychecks = append(mychecks, OsExitCheckAnalyzer, DefaultClientCheckAnalyzer)
}

// loadConfig reads the enabled staticcheck analyzers from path.
func loadConfig(path string) (ConfigData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigData{}, err
	}
	var cfg ConfigData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ConfigData{}, err
	}
	return cfg, nil
}

func main() {
	cfg := ConfigData{Staticcheck: defaultStaticcheck}
	if appfile, err := os.Executable(); err == nil {
		if loaded, err := loadConfig(filepath.Join(filepath.Dir(appfile), Config)); err == nil {
			cfg = loaded
		} else {
			fmt.Fprintf(os.Stderr, "staticlint: %v, using default checks\n", err)
		}
	}

	checks := make(map[string]bool)
	for _, v := range cfg.Staticcheck {
		checks[v] = true
	}
	appendPassesChecks()
	appendStaticcheckIoChecks(checks)
	appendOtherPublicChecks()
	appendCustomChecks()

	multichecker.Main(mychecks...)
}
