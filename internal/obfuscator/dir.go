package obfuscator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/zeromicro/go-zero/core/logx"
)

// Target layout: obfuscated sources and copies live under ObfuscatedDir,
// alias maps under ContextDir, kept paths directly under the target root.
const (
	ObfuscatedDir  = "obfuscated"
	ContextDir     = "context"
	AliasMapSuffix = ".aliases.yaml"
)

// DirReport counts what ProcessDirectory did with each entry.
type DirReport struct {
	Obfuscated int
	Copied     int
	Kept       int
	Skipped    int
	Errors     []error
}

// ProcessDirectory walks sourceDir and mirrors it into the configured target
// directory: Python files are obfuscated, other files copied, symlinks
// recreated as links. With AbortOnError the first failure stops the walk,
// otherwise failures are collected and reported together at the end.
func ProcessDirectory(ctx context.Context, sourceDir string, octx *ObfuscationContext) (*DirReport, error) {
	cfg := octx.Config
	if cfg.TargetDirectory == "" {
		return nil, fmt.Errorf("%w: target directory is required", ErrInvalidArgument)
	}
	obfuscatedPath := filepath.Join(cfg.TargetDirectory, ObfuscatedDir)
	contextPath := filepath.Join(cfg.TargetDirectory, ContextDir)
	for _, dir := range []string{obfuscatedPath, contextPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	report := &DirReport{}
	// fail records err and tells the walk whether to stop.
	fail := func(err error) error {
		report.Errors = append(report.Errors, err)
		logx.Errorf("%v", err)
		if cfg.AbortOnError {
			return err
		}
		return nil
	}

	walkErr := filepath.WalkDir(sourceDir, func(entryPath string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return fail(fmt.Errorf("error accessing path %q: %w", entryPath, err))
		}
		relPath, err := filepath.Rel(sourceDir, entryPath)
		if err != nil {
			return fail(fmt.Errorf("error calculating relative path for %q: %w", entryPath, err))
		}
		if relPath == "." {
			return nil
		}

		isSkipped, err := checkPathAgainstPatterns(relPath, cfg.SkipPaths)
		if err != nil {
			return fail(fmt.Errorf("error matching skip patterns for %s: %w", relPath, err))
		}
		if isSkipped {
			report.Skipped++
			logx.Debugf("skipping %s", entryPath)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		isKept, err := checkPathAgainstPatterns(relPath, cfg.KeepPaths)
		if err != nil {
			return fail(fmt.Errorf("error matching keep patterns for %s: %w", relPath, err))
		}
		if isKept {
			keptPath := filepath.Join(cfg.TargetDirectory, relPath)
			if d.IsDir() {
				if err := os.MkdirAll(keptPath, 0755); err != nil {
					return fail(fmt.Errorf("error creating directory for kept path %s: %w", keptPath, err))
				}
				return nil
			}
			if err := copyEntry(entryPath, keptPath, d); err != nil {
				return fail(fmt.Errorf("error copying kept file %s: %w", entryPath, err))
			}
			report.Kept++
			logx.Debugf("keeping %s -> %s", entryPath, keptPath)
			return nil
		}

		targetEntryPath := filepath.Join(obfuscatedPath, relPath)
		if d.IsDir() {
			if err := os.MkdirAll(targetEntryPath, 0755); err != nil {
				return fail(fmt.Errorf("error creating directory %q: %w", targetEntryPath, err))
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !isPythonFile(entryPath, cfg.PythonExtensions) {
			if err := copyEntry(entryPath, targetEntryPath, d); err != nil {
				return fail(fmt.Errorf("error copying %s: %w", entryPath, err))
			}
			report.Copied++
			return nil
		}

		if newer, err := targetIsNewer(d, targetEntryPath); err != nil {
			return fail(err)
		} else if newer {
			report.Skipped++
			logx.Debugf("skipping (target newer): %s", entryPath)
			return nil
		}

		if !octx.Silent {
			logx.Infof("processing %s -> %s", entryPath, targetEntryPath)
		}
		out, err := ProcessFile(ctx, entryPath, octx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fail(err)
		}
		if err := os.MkdirAll(filepath.Dir(targetEntryPath), 0755); err != nil {
			return fail(fmt.Errorf("error creating directory for file %s: %w", targetEntryPath, err))
		}
		if err := os.WriteFile(targetEntryPath, []byte(out), 0644); err != nil {
			return fail(fmt.Errorf("error writing output file %s: %w", targetEntryPath, err))
		}
		if cfg.WriteAliasMaps {
			mapPath := filepath.Join(contextPath, relPath+AliasMapSuffix)
			if err := octx.SaveAliases(entryPath, mapPath); err != nil {
				return fail(fmt.Errorf("error saving alias map for %s: %w", entryPath, err))
			}
		}
		report.Obfuscated++
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return report, walkErr
		}
		if !lo.Contains(report.Errors, walkErr) {
			report.Errors = append(report.Errors, fmt.Errorf("error during directory walk of %s: %w", sourceDir, walkErr))
		}
	}
	if len(report.Errors) > 0 {
		return report, fmt.Errorf("directory processing finished with %d errors: %w", len(report.Errors), errors.Join(report.Errors...))
	}
	if !octx.Silent {
		logx.Infof("directory processing finished: %d obfuscated, %d copied, %d kept, %d skipped",
			report.Obfuscated, report.Copied, report.Kept, report.Skipped)
	}
	return report, nil
}

func isPythonFile(path string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ext != "" && lo.ContainsBy(extensions, func(e string) bool {
		return strings.ToLower(strings.TrimPrefix(e, ".")) == ext
	})
}

// targetIsNewer reports whether a previous run already wrote a fresher output.
func targetIsNewer(d fs.DirEntry, targetPath string) (bool, error) {
	sourceInfo, err := d.Info()
	if err != nil {
		return false, fmt.Errorf("error getting source file info for %s: %w", d.Name(), err)
	}
	targetInfo, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error stating target file %s: %w", targetPath, err)
	}
	return targetInfo.ModTime().After(sourceInfo.ModTime()), nil
}

// copyEntry copies a regular file or recreates a symlink at dst.
func copyEntry(src, dst string, d fs.DirEntry) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", dst, err)
	}
	if d.Type()&fs.ModeSymlink != 0 {
		linkTarget, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("error reading symlink %q: %w", src, err)
		}
		if err := os.Symlink(linkTarget, dst); err != nil && !os.IsExist(err) {
			return fmt.Errorf("error creating symlink %s -> %s: %w", dst, linkTarget, err)
		}
		return nil
	}
	return copyFile(src, dst)
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", src, err)
	}
	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer source.Close()

	destination, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, sourceFileStat.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy data from %s to %s: %w", src, dst, err)
	}
	return nil
}

// checkPathAgainstPatterns reports whether relPath, or any one of its path
// components, matches one of the glob patterns.
func checkPathAgainstPatterns(relPath string, patterns []string) (bool, error) {
	pathNormalized := filepath.ToSlash(relPath)
	candidates := append([]string{pathNormalized}, strings.Split(pathNormalized, "/")...)
	for _, pattern := range patterns {
		for _, candidate := range candidates {
			matched, err := filepath.Match(pattern, candidate)
			if err != nil {
				return false, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
			}
			if matched {
				return true, nil
			}
		}
	}
	return false, nil
}
