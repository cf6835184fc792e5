package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Check if path points at a file.
// If path points at a symlink and `followSymlink == false`,
// function will return `true` regardless of the symlink target
func IsFileExists(path string, followSymlink bool) (bool, error) {
	fileInfo, err := GetFileInfo(path, followSymlink)
	if err != nil {
		if os.IsNotExist(err) { // If doesn't exist, don't omit an error
			return false, nil
		}
		return false, err
	}
	return !fileInfo.IsDir(), nil
}

// Check if path points at a directory.
// If path points at a symlink and `followSymlink == false`,
// function will return `false` regardless of the symlink target
func IsDirExists(path string, followSymlink bool) (bool, error) {
	fileInfo, err := GetFileInfo(path, followSymlink)
	if err != nil {
		if os.IsNotExist(err) { // If doesn't exist, don't omit an error
			return false, nil
		}
		return false, err
	}
	return fileInfo.IsDir(), nil
}

// Get the file info of the file in path.
// If path points at a symlink and `followSymlink == false`, return the file info of the symlink instead
func GetFileInfo(path string, followSymlink bool) (fileInfo os.FileInfo, err error) {
	if followSymlink {
		fileInfo, err = os.Stat(path)
	} else {
		fileInfo, err = os.Lstat(path)
	}
	return fileInfo, err
}

// FindFileInDirAndParents looks for a file named fileName in dirPath and its parents, and returns the path of the directory where it was found.
// maxDepth limits the number of parents visited, 0 means no limit.
func FindFileInDirAndParents(dirPath, fileName string, maxDepth int) (string, error) {
	visitedPaths := make(map[string]bool)
	currDir := dirPath
	for depth := 0; maxDepth == 0 || depth <= maxDepth; depth++ {
		exists, err := IsPathExists(filepath.Join(currDir, fileName))
		if err != nil || exists {
			return currDir, err
		}
		visitedPaths[currDir] = true
		currDir = filepath.Dir(currDir)
		// Reached the filesystem root.
		if visitedPaths[currDir] {
			break
		}
	}
	return "", fmt.Errorf("could not find %s in %s or its parents", fileName, dirPath)
}

// IsPathExists reports whether a file or directory exists at path.
func IsPathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func CreateDirIfNotExist(path string) error {
	exist, err := IsDirExists(path, true)
	if exist || err != nil {
		return err
	}
	return os.MkdirAll(path, 0755)
}

// WriteFileAtomic writes content to a temp file in the target directory and renames it into place,
// so readers never observe a partially written file.
func WriteFileAtomic(path string, content []byte) (err error) {
	dir := filepath.Dir(path)
	if err = CreateDirIfNotExist(dir); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tempFile.Name()))
		}
	}()
	if _, err = tempFile.Write(content); err != nil {
		return errors.Join(err, tempFile.Close())
	}
	if err = tempFile.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tempFile.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), path)
}

// Parses the JSON-encoded data and stores the result in the value pointed to by 'loadTarget'.
// filePath - Path to json file.
// loadTarget - Pointer to a struct
func Unmarshal(filePath string, loadTarget interface{}) (err error) {
	var jsonFile *os.File
	jsonFile, err = os.Open(filePath)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, jsonFile.Close())
	}()
	var byteValue []byte
	byteValue, err = io.ReadAll(jsonFile)
	if err != nil {
		return
	}
	err = json.Unmarshal(byteValue, &loadTarget)
	return
}
