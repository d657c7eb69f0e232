// Package workdir resolves the directory holding the .wsmenu replica,
// searching upward from the current directory and following .wsmenu-root
// redirect files.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDir  = ".wsmenu"
	rootFile = ".wsmenu-root"
)

// ResolveBaseDir walks up from start to the nearest directory that holds
// .wsmenu/ or a .wsmenu-root file. A .wsmenu-root file names the directory
// to use instead; relative paths are taken from the file's directory.
// When nothing is found start is returned unchanged.
func ResolveBaseDir(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if info, err := os.Stat(filepath.Join(dir, dataDir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return filepath.Clean(target), true
}
