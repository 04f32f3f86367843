// Command cppcore is the analysis driver: it wires configuration, the
// Checker Registry, Result Cache, Analyzer-Info Store, Suppression
// Store, and Finding Sink into a runnable analyze(project) -> exit_code
// operation (spec §6 external interface).
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cppcore/internal/addon"
	"github.com/standardbeagle/cppcore/internal/checker"
	"github.com/standardbeagle/cppcore/internal/config"
	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/fileanalyzer"
	"github.com/standardbeagle/cppcore/internal/joiner"
	"github.com/standardbeagle/cppcore/internal/plist"
	"github.com/standardbeagle/cppcore/internal/resultcache"
	"github.com/standardbeagle/cppcore/internal/sarif"
	"github.com/standardbeagle/cppcore/internal/sidecar"
	"github.com/standardbeagle/cppcore/internal/sink"
	"github.com/standardbeagle/cppcore/internal/suppress"
	"github.com/standardbeagle/cppcore/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "cppcore",
		Usage:                  "Static analysis engine for C/C++",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".cppcore.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to analyze (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Analyze only files matching glob patterns (e.g., --include '*.cpp')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns (e.g., --exclude '**/vendor/**')",
			},
			&cli.StringSliceFlag{
				Name:  "suppressions",
				Usage: "Suppression list file (plain text or XML), repeatable",
			},
			&cli.StringFlag{
				Name:  "suppress-xml",
				Usage: "Load a single XML-form suppressions file",
			},
			&cli.BoolFlag{
				Name:  "safety-mode",
				Usage: "Treat suppressed critical findings as exit-code failures",
			},
			&cli.IntFlag{
				Name:  "max-configs",
				Usage: "Cap the number of preprocessor configurations analyzed per file (0 = use config default)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Disable the max-configs cap for this run",
			},
			&cli.StringFlag{
				Name:  "template",
				Usage: "Text/Template output format string",
			},
			&cli.StringFlag{
				Name:  "output-format",
				Usage: "Output format: text, sarif, plist",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "output-file",
				Usage: "Write sarif/plist output to this file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Parallel file workers (0 = config default)",
			},
		},
		Action: analyzeCommand,
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Configuration management commands",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the resolved configuration",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Validate the configuration file",
						Action: configValidateCommand,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "cppcore: %v\n", err)
		os.Exit(2)
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag
// overrides, mirroring the teacher driver's load-then-override shape.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".cppcore.kdl" {
		configPath = filepath.Join(rootFlag, ".cppcore.kdl")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if c.Bool("safety-mode") {
		cfg.SafetyMode = true
	}
	if maxConfigs := c.Int("max-configs"); maxConfigs > 0 {
		cfg.MaxConfigs = maxConfigs
	}
	if tmpl := c.String("template"); tmpl != "" {
		cfg.Template = tmpl
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	fmt.Printf("project.root:          %s\n", cfg.Project.Root)
	fmt.Printf("project.name:          %s\n", cfg.Project.Name)
	fmt.Printf("build_dir:             %s\n", cfg.BuildDir)
	fmt.Printf("cache_dir:             %s\n", cfg.CacheDir)
	fmt.Printf("max_configs:           %d\n", cfg.MaxConfigs)
	fmt.Printf("checks_max_time:       %ds\n", cfg.ChecksMaxTime)
	fmt.Printf("safety_mode:           %t\n", cfg.SafetyMode)
	fmt.Printf("severities:            %s\n", strings.Join(cfg.EnabledSeverities, ", "))
	fmt.Printf("parallel_file_workers: %d\n", cfg.ParallelFileWorkers)
	fmt.Printf("include:               %d pattern(s)\n", len(cfg.Include))
	fmt.Printf("exclude:               %d pattern(s)\n", len(cfg.Exclude))
	return nil
}

func configValidateCommand(c *cli.Context) error {
	_, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Printf("configuration invalid: %v\n", err)
		return err
	}
	fmt.Println("configuration is valid")
	return nil
}

// analyzeCommand runs analyze(project) end to end: discover files, build
// the Checker Registry and supporting stores, run the File Analyzer over
// every discovered file, join whole-program checks, and emit the chosen
// output format.
func analyzeCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	supp := suppress.NewStore()
	if err := loadSuppressions(supp, c.StringSlice("suppressions"), c.String("suppress-xml")); err != nil {
		return err
	}

	addons, err := loadAddons(cfg.AddonManifestPath)
	if err != nil {
		return err
	}

	var cache *resultcache.Cache
	if cfg.CacheDir != "" {
		cachePath := filepath.Join(cfg.CacheDir, "results.xml")
		cache, err = resultcache.Load(cachePath)
		if err != nil {
			return fmt.Errorf("failed to load result cache: %w", err)
		}
	}

	var sidecarIndex *sidecar.Index
	if cfg.BuildDir != "" {
		sidecarIndex, err = sidecar.LoadIndex(cfg.BuildDir)
		if err != nil {
			return fmt.Errorf("failed to load sidecar index: %w", err)
		}
	}

	registry := checker.NewRegistry()
	registry.Register(checker.UnusedFuncChecker{})

	settings := checker.Settings{EnabledSeverities: enabledSeverityMap(cfg.EnabledSeverities)}

	files, err := discoverFiles(cfg)
	if err != nil {
		return fmt.Errorf("failed to discover source files: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "cppcore: no source files matched")
		return nil
	}

	plistBuilder := plist.New()
	var allFindings []finding.Finding
	var loggerMu collectingLogger
	loggerMu.format = c.String("output-format")

	sinkOpts := sink.Options{
		Template:       cfg.Template,
		SafetyMode:     cfg.SafetyMode,
		NofailSuppress: suppress.NewStore(),
		Logger: func(rendered string, f finding.Finding) {
			loggerMu.log(rendered, f)
		},
		Plist: plistBuilder.Add,
	}

	analyzer := fileanalyzer.New(fileanalyzer.Options{
		Registry:      registry,
		Settings:      settings,
		Suppressions:  supp,
		Cache:         cache,
		SidecarIndex:  sidecarIndex,
		BuildDir:      cfg.BuildDir,
		Addons:        addons,
		MaxConfigs:    cfg.MaxConfigs,
		Force:         c.Bool("force"),
		ChecksMaxTime: time.Duration(cfg.ChecksMaxTime) * time.Second,
		ToolInfo:      "cppcore-" + version.Version,
		SinkOptions:   sinkOpts,
		Parallelism:   parallelism(c, cfg),
	})

	sourceFiles := make(map[string][]byte, len(files))
	for _, f := range files {
		data, rerr := os.ReadFile(f)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "cppcore: skipping %s: %v\n", f, rerr)
			continue
		}
		sourceFiles[f] = data
	}

	exitCode, err := analyzer.AnalyzeAll(context.Background(), sourceFiles)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if cache != nil {
		if err := cache.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "cppcore: failed to save result cache: %v\n", err)
		}
	}
	if sidecarIndex != nil {
		if err := sidecarIndex.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "cppcore: failed to flush sidecar index: %v\n", err)
		}
	}

	joinSink := &collectingSink{parent: &loggerMu}
	if sidecarIndex != nil {
		if err := joiner.FromSidecars(cfg.BuildDir, registry, settings, joinSink); err != nil {
			fmt.Fprintf(os.Stderr, "cppcore: whole-program join failed: %v\n", err)
		}
	}
	allFindings = append(loggerMu.findings, joinSink.findings...)
	if len(joinSink.findings) > 0 && exitCode == 0 {
		exitCode = 1
	}

	if err := emitOutput(c, allFindings, plistBuilder); err != nil {
		return err
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	return nil
}

// collectingLogger buffers rendered findings for the chosen output
// format while still printing each rendered line to stdout when
// output-format is "text" (the default), matching the teacher driver's
// "logger writes to stdout as it goes" idiom for the common case. log is
// safe for concurrent use since AnalyzeAll shares one Logger callback
// across its parallel file workers (spec §5).
type collectingLogger struct {
	format   string
	mu       sync.Mutex
	findings []finding.Finding
}

func (l *collectingLogger) log(rendered string, f finding.Finding) {
	l.mu.Lock()
	l.findings = append(l.findings, f)
	l.mu.Unlock()
	if l.format == "" || l.format == "text" {
		fmt.Println(rendered)
	}
}

// collectingSink adapts the Whole-Program Joiner's checker.Sink
// interface onto the same finding buffer the per-file pass fills, so
// sarif/plist output includes cross-TU findings too.
type collectingSink struct {
	parent   *collectingLogger
	findings []finding.Finding
}

func (s *collectingSink) Report(f finding.Finding) {
	s.findings = append(s.findings, f)
	if s.parent.format == "" || s.parent.format == "text" {
		fmt.Println(f.ShortMessage)
	}
}

func emitOutput(c *cli.Context, findings []finding.Finding, pb *plist.Builder) error {
	format := c.String("output-format")
	switch format {
	case "", "text":
		return nil // already streamed by collectingLogger
	case "sarif":
		log := sarif.Build("cppcore", findings)
		data, err := sarif.Marshal(log)
		if err != nil {
			return fmt.Errorf("failed to marshal sarif output: %w", err)
		}
		return writeOutput(c, data)
	case "plist":
		data, err := pb.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal plist output: %w", err)
		}
		return writeOutput(c, data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeOutput(c *cli.Context, data []byte) error {
	if path := c.String("output-file"); path != "" {
		return os.WriteFile(path, data, 0o644)
	}
	_, err := os.Stdout.Write(data)
	return err
}

func loadSuppressions(store *suppress.Store, listFiles []string, xmlFile string) error {
	for _, path := range listFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read suppressions file %s: %w", path, err)
		}
		supps, perrs := suppress.ParseLineFile(string(data))
		for _, perr := range perrs {
			fmt.Fprintf(os.Stderr, "cppcore: %s: %v\n", path, perr)
		}
		for _, s := range supps {
			if err := store.Add(s); err != nil {
				fmt.Fprintf(os.Stderr, "cppcore: %s: %v\n", path, err)
			}
		}
	}
	if xmlFile != "" {
		data, err := os.ReadFile(xmlFile)
		if err != nil {
			return fmt.Errorf("failed to read suppressions xml %s: %w", xmlFile, err)
		}
		supps, err := suppress.ParseXMLFile(data)
		if err != nil {
			return fmt.Errorf("failed to parse suppressions xml %s: %w", xmlFile, err)
		}
		for _, s := range supps {
			if err := store.Add(s); err != nil {
				fmt.Fprintf(os.Stderr, "cppcore: %s: %v\n", xmlFile, err)
			}
		}
	}
	return nil
}

func loadAddons(path string) (*addon.Set, error) {
	if path == "" {
		return nil, nil
	}
	set, err := addon.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load addon manifest: %w", err)
	}
	return set, nil
}

func enabledSeverityMap(names []string) map[finding.Severity]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[finding.Severity]bool, len(names))
	for _, n := range names {
		m[finding.Severity(n)] = true
	}
	return m
}

func parallelism(c *cli.Context, cfg *config.Config) int {
	if jobs := c.Int("jobs"); jobs > 0 {
		return jobs
	}
	return cfg.ParallelFileWorkers
}

// sourceExtensions lists the C/C++ extensions the File Analyzer accepts
// (spec §1: "C/C++ only").
var sourceExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true,
	".h": true, ".hh": true, ".hpp": true, ".hxx": true,
}

// discoverFiles walks cfg.Project.Root, applying cfg.Include/Exclude as
// doublestar glob patterns (spec §1 domain stack: "github.com/bmatcuk/
// doublestar/v4"), matching against the path relative to the root.
func discoverFiles(cfg *config.Config) ([]string, error) {
	root := cfg.Project.Root
	if root == "" {
		root = "."
	}
	var matched []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if isExcluded(rel, cfg.Exclude) {
			return nil
		}
		if len(cfg.Include) > 0 {
			if !matchesAny(rel, cfg.Include) {
				return nil
			}
		} else if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		matched = append(matched, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

func isExcluded(rel string, patterns []string) bool {
	return matchesAny(rel, patterns)
}

func matchesAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
