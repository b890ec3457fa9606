package cmd

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mt4110/rec-split/internal/batch"
	"github.com/mt4110/rec-split/internal/media"
)

// videoGlob matches every supported extension in either case,
// e.g. "{mp4,MP4,mov,MOV}".
func videoGlob() string {
	exts := make([]string, 0, len(media.SupportedExtensions)*2)
	for _, e := range media.SupportedExtensions {
		exts = append(exts, e, strings.ToUpper(e))
	}
	return "{" + strings.Join(exts, ",") + "}"
}

// sourceFiles expands the inputs and leaves out what lies under destDir,
// where earlier runs put their segments.
func sourceFiles(inputPatterns []string, destDir string) []string {
	return batch.WithoutDir(expandInputs(inputPatterns), destDir)
}

// expandInputs turns files, directories and doublestar patterns into a
// de-duplicated file list. Directories are searched recursively for
// supported videos.
func expandInputs(inputPatterns []string) []string {
	var files []string
	home, _ := os.UserHomeDir()

	for _, input := range inputPatterns {
		processedInput := input
		if input == "~" {
			processedInput = home
		} else if strings.HasPrefix(input, "~/") {
			processedInput = filepath.Join(home, input[2:])
		}

		var pattern string
		info, err := os.Stat(processedInput)
		if err == nil && info.IsDir() {
			pattern = filepath.Join(processedInput, "**", "*."+videoGlob())
		} else {
			pattern = processedInput
		}

		fsys := os.DirFS(".")
		globPattern := filepath.ToSlash(pattern)
		isAbs := filepath.IsAbs(pattern)
		if isAbs {
			fsys = os.DirFS("/")
			rel, err := filepath.Rel("/", pattern)
			if err != nil {
				log.Printf("警告: パス '%s' の処理に失敗しました: %v", pattern, err)
				continue
			}
			globPattern = filepath.ToSlash(rel)
		}

		matches, err := doublestar.Glob(fsys, globPattern, doublestar.WithFilesOnly())
		if err != nil {
			log.Printf("警告: パターン '%s' の検索に失敗しました: %v", pattern, err)
			continue
		}

		for _, match := range matches {
			if isAbs {
				match = filepath.Join("/", match)
			}
			files = append(files, filepath.FromSlash(match))
		}
	}

	seen := make(map[string]bool)
	var result []string
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			result = append(result, f)
		}
	}
	return result
}
