//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// TestCreateFolder tests creating a single collection
func TestCreateFolder(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		folderPath := tc.HomePath("testfolder")

		if err := os.Mkdir(folderPath, 0755); err != nil {
			t.Fatalf("Failed to create folder: %v", err)
		}

		info, err := os.Stat(folderPath)
		if err != nil {
			t.Fatalf("Failed to stat folder: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("Expected directory, got file")
		}
	})
}

// TestCreateNestedFolders tests creating 20 nested collections
func TestCreateNestedFolders(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		currentPath := tc.HomePath("")

		for i := 0; i < 20; i++ {
			currentPath = filepath.Join(currentPath, fmt.Sprintf("nested%d", i))
			if err := os.Mkdir(currentPath, 0755); err != nil {
				t.Fatalf("Failed to create nested folder %d: %v", i, err)
			}
		}

		info, err := os.Stat(currentPath)
		if err != nil {
			t.Fatalf("Failed to stat deepest folder: %v", err)
		}
		if !info.IsDir() {
			t.Errorf("Expected directory at deepest level")
		}
	})
}

// TestCreateEmptyFile tests creating a single empty data object
func TestCreateEmptyFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		filePath := tc.HomePath("empty.txt")

		if err := os.WriteFile(filePath, []byte{}, 0644); err != nil {
			t.Fatalf("Failed to create empty file: %v", err)
		}

		info, err := os.Stat(filePath)
		if err != nil {
			t.Fatalf("Failed to stat file: %v", err)
		}
		if info.Size() != 0 {
			t.Errorf("Expected empty file, got size %d", info.Size())
		}
	})
}

// TestCreateFileWithContent writes a data object and checks the size the
// catalog records for it on close.
func TestCreateFileWithContent(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		filePath := tc.HomePath("report.csv")
		data := []byte("id,value\n1,42\n2,17\n")

		if err := os.WriteFile(filePath, data, 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}

		info, err := os.Stat(filePath)
		if err != nil {
			t.Fatalf("Failed to stat file: %v", err)
		}
		if info.Size() != int64(len(data)) {
			t.Errorf("Expected size %d, got %d", len(data), info.Size())
		}
		if !info.Mode().IsRegular() {
			t.Errorf("Expected a regular file, got %v", info.Mode())
		}
	})
}

// TestReadDirectory lists a collection holding both kinds of entity
func TestReadDirectory(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		base := tc.HomePath("listing")
		if err := os.Mkdir(base, 0755); err != nil {
			t.Fatalf("Failed to create base folder: %v", err)
		}

		want := []string{"a.txt", "b.txt", "sub"}
		for _, name := range want[:2] {
			if err := os.WriteFile(filepath.Join(base, name), []byte(name), 0644); err != nil {
				t.Fatalf("Failed to create %s: %v", name, err)
			}
		}
		if err := os.Mkdir(filepath.Join(base, "sub"), 0755); err != nil {
			t.Fatalf("Failed to create sub: %v", err)
		}

		entries, err := os.ReadDir(base)
		if err != nil {
			t.Fatalf("Failed to read directory: %v", err)
		}

		var got []string
		for _, e := range entries {
			got = append(got, e.Name())
			if e.Name() == "sub" && !e.IsDir() {
				t.Errorf("Expected sub to be a directory")
			}
		}
		sort.Strings(got)
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("Expected entries %v, got %v", want, got)
		}
	})
}

// TestReadFileUnsupported checks that opening a data object for reading
// fails: the mount only streams writes.
func TestReadFileUnsupported(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		filePath := tc.HomePath("write-only.txt")
		if err := os.WriteFile(filePath, []byte("data"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}

		if _, err := os.ReadFile(filePath); err == nil {
			t.Error("Expected reading a data object to fail")
		}
	})
}
