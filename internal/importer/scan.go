package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// processedDir is the subdirectory of the import dir that holds imported files.
const processedDir = "processed"

// FileInfo describes a CSV file waiting in an account's import directory.
type FileInfo struct {
	AccountID string
	Name      string
	Path      string
	Size      int64
}

// Scan returns CSV files in <dir>/<account>/ for every account subdirectory.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if !e.IsDir() || e.Name() == processedDir {
			continue
		}
		found, err := scanAccount(dir, e.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].AccountID != files[j].AccountID {
			return files[i].AccountID < files[j].AccountID
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func scanAccount(dir, accountID string) ([]FileInfo, error) {
	accDir := filepath.Join(dir, accountID)
	entries, err := os.ReadDir(accDir)
	if err != nil {
		return nil, fmt.Errorf("reading import dir %s: %w", accountID, err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			AccountID: accountID,
			Name:      e.Name(),
			Path:      filepath.Join(accDir, e.Name()),
			Size:      info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from <dir>/<account>/ to <dir>/processed/<account>/.
func MarkProcessed(dir string, file FileInfo) error {
	dstDir := filepath.Join(dir, processedDir, file.AccountID)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, file.Name)
	if err := os.Rename(file.Path, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", file.Name, err)
	}
	return nil
}
