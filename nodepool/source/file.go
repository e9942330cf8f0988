package source

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// FileSource 读取本地输入文件。
// 完整 URL 列表存在时优先使用（只保留包含 "://" 的行），否则读取裸节点列表。
type FileSource struct {
	allURLFile    string
	collectedFile string
	used          string
}

func NewFileSource(allURLFile, collectedFile string) *FileSource {
	return &FileSource{allURLFile: allURLFile, collectedFile: collectedFile}
}

func (s *FileSource) Name() string {
	if s.used != "" {
		return "file:" + s.used
	}
	return "file"
}

func (s *FileSource) Fetch(_ context.Context) ([]string, error) {
	if lines, err := readLines(s.allURLFile, true); err == nil {
		s.used = s.allURLFile
		return lines, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if lines, err := readLines(s.collectedFile, false); err == nil {
		s.used = s.collectedFile
		return lines, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return nil, ErrNoSource
}

func readLines(path string, requireScheme bool) ([]string, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if requireScheme && !strings.Contains(line, "://") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
