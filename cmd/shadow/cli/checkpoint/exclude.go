package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var buildArtifactPatterns = []string{
	".gradle/", ".idea/", ".parcel-cache/", ".pytest_cache/", ".next/", ".nuxt/", ".sass-cache/",
	".terraform/", ".terragrunt-cache/", ".vs/", ".vscode/", "Pods/", "__pycache__/", "bin/", "build/",
	"bundle/", "coverage/", "deps/", "dist/", "env/", "node_modules/", "obj/", "out/", "pkg/", "pycache/",
	"target/dependency/", "temp/", "vendor/", "venv/",
}

var mediaExtensions = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "ico", "webp", "tiff", "tif", "raw", "heic", "avif", "eps", "psd",
	"3gp", "aac", "aiff", "asf", "avi", "divx", "flac", "m4a", "m4v", "mkv", "mov", "mp3", "mp4", "mpeg",
	"mpg", "ogg", "opus", "rm", "rmvb", "vob", "wav", "webm", "wma", "wmv",
}

var cachePatterns = []string{
	"*.DS_Store", "*.bak", "*.cache", "*.crdownload", "*.dmp", "*.dump", "*.eslintcache", "*.lock", "*.log",
	"*.old", "*.part", "*.partial", "*.pyc", "*.pyo", "*.stackdump", "*.swo", "*.swp", "*.temp", "*.tmp",
	"*.Thumbs.db",
}

var configPatterns = []string{"*.env*", "*.local", "*.development", "*.production"}

var largeDataExtensions = []string{
	"zip", "tar", "gz", "rar", "7z", "iso", "bin", "exe", "dll", "so", "dylib", "dat", "dmg", "msi",
}

var databaseExtensions = []string{
	"arrow", "accdb", "aof", "avro", "bak", "bson", "csv", "db", "dbf", "dmp", "frm", "ibd", "mdb", "myd",
	"myi", "orc", "parquet", "pdb", "rdb", "sql", "sqlite",
}

var geospatialExtensions = []string{
	"shp", "shx", "dbf", "prj", "sbn", "sbx", "shp.xml", "cpg", "gdb", "mdb", "gpkg", "kml", "kmz", "gml",
	"geojson", "dem", "asc", "img", "ecw", "las", "laz", "mxd", "qgs", "grd", "csv", "dwg", "dxf",
}

var logPatterns = []string{
	"*.error", "*.log", "*.logs", "*.npm-debug.log*", "*.out", "*.stdout", "yarn-debug.log*", "yarn-error.log*",
}

func extensionGlobs(exts []string) []string {
	globs := make([]string, len(exts))
	for i, ext := range exts {
		globs[i] = "*." + ext
	}
	return globs
}

// StaticExcludePatterns returns the built-in noise patterns in their fixed order.
func StaticExcludePatterns() []string {
	patterns := []string{".git/"}
	patterns = append(patterns, buildArtifactPatterns...)
	patterns = append(patterns, extensionGlobs(mediaExtensions)...)
	patterns = append(patterns, cachePatterns...)
	patterns = append(patterns, configPatterns...)
	patterns = append(patterns, extensionGlobs(largeDataExtensions)...)
	patterns = append(patterns, extensionGlobs(databaseExtensions)...)
	patterns = append(patterns, extensionGlobs(geospatialExtensions)...)
	patterns = append(patterns, logPatterns...)
	return patterns
}

// ExcludePatterns builds the exclude list for a workspace: the static patterns,
// then Git LFS tracked patterns from .gitattributes, then the root .gitignore
// rules, then extra. A missing attributes or ignore file contributes nothing.
func ExcludePatterns(workspaceDir string, extra []string) ([]string, error) {
	patterns := StaticExcludePatterns()

	lfs, err := lfsPatterns(workspaceDir)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, lfs...)

	ignored, err := gitignoreRules(workspaceDir)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, ignored...)

	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns, nil
}

// lfsPatterns returns the path pattern of every .gitattributes line using filter=lfs.
func lfsPatterns(workspaceDir string) ([]string, error) {
	lines, err := readLines(filepath.Join(workspaceDir, ".gitattributes"))
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, line := range lines {
		if !strings.Contains(line, "filter=lfs") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 && !strings.HasPrefix(fields[0], "#") {
			patterns = append(patterns, fields[0])
		}
	}
	return patterns, nil
}

func gitignoreRules(workspaceDir string) ([]string, error) {
	lines, err := readLines(filepath.Join(workspaceDir, ".gitignore"))
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		rules = append(rules, trimmed)
	}
	return rules, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the workspace root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return lines, nil
}

// writeExcludeFile replaces <gitDir>/info/exclude with patterns.
func writeExcludeFile(gitDir string, patterns []string) error {
	infoDir := filepath.Join(gitDir, "info")
	if err := os.MkdirAll(infoDir, 0o750); err != nil {
		return fmt.Errorf("failed to create info directory: %w", err)
	}
	content := strings.Join(patterns, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(infoDir, "exclude"), []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write exclude file: %w", err)
	}
	return nil
}
