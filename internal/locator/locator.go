// Package locator finds the ffmpeg and ffprobe executables.
package locator

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
)

// searchDirs are tried after $PATH. Homebrew installs land in the first
// two, distro packages in the last.
var searchDirs = []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}

// Tools holds resolved executable paths.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// Resolve returns the path of the executable name. A non-empty configured
// value wins: it may be a path or a bare command name looked up in $PATH.
func Resolve(configured, name string) (string, error) {
	if configured != "" {
		if strings.ContainsRune(configured, filepath.Separator) {
			if isExecutable(configured) {
				return configured, nil
			}
			return "", fmt.Errorf("%w: %s (configured for %s)", media.ErrNotFound, configured, name)
		}
		name = configured
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	for _, dir := range searchDirs {
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s が見つかりません。インストールを推奨します: `brew install ffmpeg`", media.ErrNotFound, name)
}

// ResolveTools resolves both executables. When only ffmpeg is configured
// as a path, ffprobe is looked for next to it first.
func ResolveTools(ffmpegBin, ffprobeBin string) (Tools, error) {
	ffmpeg, err := Resolve(ffmpegBin, "ffmpeg")
	if err != nil {
		return Tools{}, err
	}

	if ffprobeBin == "" {
		sibling := filepath.Join(filepath.Dir(ffmpeg), "ffprobe")
		if isExecutable(sibling) {
			return Tools{FFmpeg: ffmpeg, FFprobe: sibling}, nil
		}
	}
	ffprobe, err := Resolve(ffprobeBin, "ffprobe")
	if err != nil {
		return Tools{}, err
	}
	return Tools{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

// Version returns the first line of `bin -version`.
func Version(ctx context.Context, runner ffexec.Runner, bin string) (string, error) {
	res, err := runner.Run(ctx, bin, "-version")
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%s -version exited with %d: %s", bin, res.ExitCode, res.StderrText())
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	return strings.TrimSpace(line), nil
}

// SuggestUpgrade logs a hint when Homebrew reports ffmpeg as outdated.
// It returns whether an upgrade is available; a missing brew is not an error.
func SuggestUpgrade(ctx context.Context, runner ffexec.Runner) bool {
	brew, err := exec.LookPath("brew")
	if err != nil {
		return false
	}
	res, err := runner.Run(ctx, brew, "outdated", "ffmpeg")
	if err != nil || !res.OK() {
		return false
	}
	if !strings.Contains(string(res.Stdout), "ffmpeg") {
		return false
	}
	log.Println("ℹ️ ffmpeg のアップデートが可能です。以下で更新できます:")
	log.Println("   brew upgrade ffmpeg")
	return true
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
