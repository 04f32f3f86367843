// Package fileanalyzer implements the File Analyzer (spec component H):
// the public analyze(file) -> exit_code operation that drives one source
// file through preprocessing, per-configuration checking, caching, and
// sidecar bookkeeping.
package fileanalyzer

import (
	"context"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/cppcore/internal/addon"
	"github.com/standardbeagle/cppcore/internal/checker"
	"github.com/standardbeagle/cppcore/internal/errs"
	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
	"github.com/standardbeagle/cppcore/internal/preprocess"
	"github.com/standardbeagle/cppcore/internal/resultcache"
	"github.com/standardbeagle/cppcore/internal/sidecar"
	"github.com/standardbeagle/cppcore/internal/sink"
	"github.com/standardbeagle/cppcore/internal/suppress"
	"github.com/standardbeagle/cppcore/internal/tokenview"
)

// Options configures one Analyzer (spec §4.4, wiring every already-built
// component together).
type Options struct {
	Registry      *checker.Registry
	Settings      checker.Settings
	Suppressions  *suppress.Store
	Cache         *resultcache.Cache // nil disables the Result Cache (G)
	SidecarIndex  *sidecar.Index     // nil disables the Analyzer-Info Store (F)
	BuildDir      string             // "" alongside a nil SidecarIndex means sidecars are skipped entirely
	Addons        *addon.Set         // nil means no addon manifest was configured
	MaxConfigs    int                // 0 means unlimited
	Force         bool               // user forced a single config; disables the max_configs cap
	ChecksMaxTime time.Duration      // per-config checker wall-clock budget, spec §4.3
	ToolInfo      string             // fed into preprocess.Fingerprint
	SinkOptions   sink.Options       // Template/SafetyMode/Logger/Plist/etc; Sidecar is overwritten per config
	Parallelism   int                // AnalyzeAll worker cap; 0 defaults to 8
}

// Analyzer drives analyze(file) for a configured set of components.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer bound to opts.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Result is what AnalyzeFile returns, letting AnalyzeAll merge exit codes
// across files (spec §5: "atomic max across workers").
type Result struct {
	File     string
	ExitCode int
	// FileInfos is this file's per-checker cross-TU summaries, keyed by
	// checker name, for callers running in single-job in-memory mode
	// (spec §4.3 "either keep it in-memory... or write it into the
	// sidecar") — populated regardless of sidecar use, since collecting it
	// costs nothing extra and the Whole-Program Joiner's in-memory path
	// needs it even when a build directory is also configured.
	FileInfos map[string][]checker.FileInfo
}

// AnalyzeFile executes the spec §4.4 algorithm for one file. Safe to call
// concurrently for distinct files (spec §5): a.opts.SinkOptions is never
// mutated, only copied per call.
func (a *Analyzer) AnalyzeFile(path string, src []byte) (Result, error) {
	rs := preprocess.Load(path, src)

	// Step 0 (spec §4.1, performed once per file regardless of
	// configuration): index inline suppressions before any finding can be
	// reported against this file.
	inline, parseErrs := preprocess.ExtractInlineSuppressions(rs)
	for _, perr := range parseErrs {
		log.Printf("fileanalyzer: %s: inline suppression parse error: %v", path, perr)
	}
	for _, supp := range inline {
		if err := a.opts.Suppressions.Add(supp); err != nil {
			log.Printf("fileanalyzer: %s: invalid inline suppression: %v", path, err)
		}
	}

	sinkOpts := a.opts.SinkOptions
	remarks := preprocess.ExtractRemarkComments(rs)
	if len(remarks) > 0 {
		merged := make(map[sink.RemarkKey]string, len(a.opts.SinkOptions.Remarks)+len(remarks))
		for k, v := range a.opts.SinkOptions.Remarks {
			merged[k] = v
		}
		for _, r := range remarks {
			merged[sink.RemarkKey{File: r.File, Line: r.Line}] = r.Text
		}
		sinkOpts.Remarks = merged
	}
	s := sink.New(a.opts.Suppressions, sinkOpts)

	// Step 2: initial token list, baseline ("") configuration, to detect a
	// syntax error before committing to the full configuration loop.
	baseline, err := tokenview.Build(path, src)
	if err != nil {
		return a.reportInternal(s, path, "tokenize", err), nil
	}
	syntaxBad := baseline.HasSyntaxError()
	baseline.Close()
	if syntaxBad {
		s.Report(finding.Finding{
			ID:           "syntaxError",
			Severity:     finding.SeverityError,
			Certainty:    finding.CertaintyNormal,
			ShortMessage: "syntax error",
			File0:        path,
			CallStack:    []location.Location{location.New(0, path, path, 1, 1, "")},
		})
		return Result{File: path, ExitCode: s.ExitCode()}, nil
	}

	// Step 3: enumerate configurations, capping unless the user forced one.
	configs := preprocess.EnumerateConfigs(rs)
	if !a.opts.Force && a.opts.MaxConfigs > 0 && len(configs) > a.opts.MaxConfigs {
		s.Report(finding.Finding{
			ID:           "toomanyconfigs",
			Severity:     finding.SeverityInformation,
			Certainty:    finding.CertaintyNormal,
			ShortMessage: "too many configurations, analysis capped at max_configs",
			File0:        path,
		})
		configs = configs[:a.opts.MaxConfigs]
	}

	addonIdentity := a.opts.Addons.Identity()

	var failDiagnostics []error
	anySucceeded := false
	seenStructuralHashes := make(map[string]bool)
	fileInfos := make(map[string][]checker.FileInfo)

	for _, cfg := range configs {
		expanded, perr := preprocess.Preprocess(path, cfg, rs)
		if perr != nil {
			failDiagnostics = append(failDiagnostics, perr)
			continue
		}
		code := strings.Join(expanded, "\n")

		if a.opts.Cache != nil && a.opts.Cache.ReportCached(path, cfg, code, s) {
			anySucceeded = true
			continue
		}

		view, verr := tokenview.Build(path, []byte(code))
		if verr != nil {
			failDiagnostics = append(failDiagnostics, errs.NewInternalError("tokenize:"+cfg, verr))
			continue
		}

		structHash := view.StructuralHash()
		if seenStructuralHashes[structHash] {
			s.Report(finding.Finding{
				ID:           "purgedConfiguration",
				Severity:     finding.SeverityDebug,
				Certainty:    finding.CertaintyNormal,
				ShortMessage: "configuration " + cfg + " simplifies identically to a prior one, skipped",
				File0:        path,
			})
			view.Close()
			anySucceeded = true
			continue
		}
		seenStructuralHashes[structHash] = true
		anySucceeded = true

		for _, tok := range view.Tokens {
			a.opts.Suppressions.MarkLineReached(path, tok.Line)
		}

		fingerprint := preprocess.Fingerprint(a.opts.ToolInfo, expanded, enabledSeverityNames(a.opts.Settings), []string{cfg}, addonIdentity, nil)
		checksum := strconv.FormatUint(fingerprint, 10)

		var doc *sidecar.Document
		replayed := false
		if a.opts.BuildDir != "" && a.opts.SidecarIndex != nil {
			stem := a.opts.SidecarIndex.Stem(path, cfg)
			sidecarPath := filepath.Join(a.opts.BuildDir, stem+".xml")
			d, hit := sidecar.Open(sidecarPath, checksum)
			if hit {
				for _, f := range d.Findings() {
					s.Report(f)
				}
				replayed = true
			} else {
				doc = d
			}
		}
		if replayed {
			view.Close()
			continue
		}

		s.SetSidecar(doc)
		if rerr := a.opts.Registry.RunAll(view, a.opts.Settings, s, a.opts.ChecksMaxTime); rerr != nil {
			s.Report(finding.Finding{
				ID:           "internalError",
				Severity:     finding.SeverityInternal,
				Certainty:    finding.CertaintyNormal,
				ShortMessage: rerr.Error(),
				File0:        path,
			})
		}

		for _, c := range a.opts.Registry.All() {
			fi, ferr := c.FileInfo(view, a.opts.Settings, cfg)
			if ferr != nil || fi == nil {
				continue
			}
			fileInfos[fi.CheckerName()] = append(fileInfos[fi.CheckerName()], fi)
			if serializable, ok := fi.(interface{ SerializeFragment() ([]byte, error) }); ok && doc != nil {
				if frag, serr := serializable.SerializeFragment(); serr == nil {
					doc.AddFileInfo(fi.CheckerName(), frag)
				}
			}
		}

		if doc != nil {
			if cerr := doc.Close(); cerr != nil {
				log.Printf("fileanalyzer: %s: write sidecar: %v", path, cerr)
			}
		}

		view.Close()
	}

	if !anySucceeded && len(failDiagnostics) > 0 {
		if len(configs) >= 2 {
			s.Report(finding.Finding{
				ID:             "noValidConfiguration",
				Severity:       finding.SeverityInformation,
				Certainty:      finding.CertaintyNormal,
				ShortMessage:   "no configuration of this file could be analyzed",
				VerboseMessage: errs.NewMultiError(failDiagnostics).Error(),
				File0:          path,
			})
		} else {
			last := failDiagnostics[len(failDiagnostics)-1]
			s.Report(finding.Finding{
				ID:           "preprocessorErrorDirective",
				Severity:     finding.SeverityError,
				Certainty:    finding.CertaintyNormal,
				ShortMessage: last.Error(),
				File0:        path,
			})
		}
	}

	return Result{File: path, ExitCode: s.ExitCode(), FileInfos: fileInfos}, nil
}

// reportInternal reports an internalError Finding for a failure that
// aborts analysis of this file entirely (spec §4.4 "Failure").
func (a *Analyzer) reportInternal(s *sink.Sink, path, op string, err error) Result {
	s.Report(finding.Finding{
		ID:           "internalError",
		Severity:     finding.SeverityInternal,
		Certainty:    finding.CertaintyNormal,
		ShortMessage: errs.NewInternalError(op, err).Error(),
		File0:        path,
	})
	return Result{File: path, ExitCode: s.ExitCode()}
}

// AnalyzeAll runs AnalyzeFile across every (path,src) pair with bounded
// parallelism (spec §5: "parallel file workers; each worker owns its local
// dedup set"), merging exit codes via atomic max.
func (a *Analyzer) AnalyzeAll(ctx context.Context, files map[string][]byte) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	limit := a.opts.Parallelism
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)

	exitCode := 0
	var mu sync.Mutex

	for path, src := range files {
		path, src := path, src
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := a.AnalyzeFile(path, src)
			if err != nil {
				return err
			}
			mu.Lock()
			if res.ExitCode > exitCode {
				exitCode = res.ExitCode
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

func enabledSeverityNames(settings checker.Settings) []string {
	if settings.EnabledSeverities == nil {
		return nil
	}
	names := make([]string, 0, len(settings.EnabledSeverities))
	for sev, on := range settings.EnabledSeverities {
		if on {
			names = append(names, string(sev))
		}
	}
	return names
}
