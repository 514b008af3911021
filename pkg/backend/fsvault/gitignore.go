package fsvault

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const gitignoreHeader = "# nt local state"

// EnsureStateDirIgnored adds .nt/ to the vault's .gitignore when the vault
// is a git work tree. It is idempotent; existing content is preserved.
func (v *Vault) EnsureStateDirIgnored() error {
	if _, err := os.Stat(filepath.Join(v.root, ".git")); err != nil {
		return nil
	}
	return ensureIgnored(filepath.Join(v.root, ".gitignore"))
}

func ensureIgnored(gitignorePath string) error {
	present, err := stateDirIgnored(gitignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if present {
		return nil
	}
	return appendPattern(gitignorePath, StateDirName+"/")
}

// stateDirIgnored reports whether a line of the file already covers .nt.
func stateDirIgnored(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if coversStateDir(line) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func coversStateDir(line string) bool {
	switch strings.TrimPrefix(line, "/") {
	case StateDirName, StateDirName + "/", StateDirName + "/*", StateDirName + "/**", StateDirName + "/**/*":
		return true
	}
	return false
}

// appendPattern appends pattern under a comment header, keeping a blank
// line between it and any existing content.
func appendPattern(path, pattern string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	var b strings.Builder
	if len(content) > 0 {
		if content[len(content)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString(gitignoreHeader + "\n" + pattern + "\n")

	_, err = file.WriteString(b.String())
	return err
}
