package sync

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines excludes hidden/system files, editor and office temp
// files, and the agent's own bookkeeping folder from watching and scanning.
var defaultIgnoreLines = []string{
	".beacon/",
	"*.beacon-part",
	"*_local_[0-9]*", // conflict copies produced by keep_both
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"Icon",
	"~$*",
	"*.tmp",
	"*.swp",
	"*.swo",
	"*.crdownload",
	"*.partial",
	".git/",
}

type SyncIgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewSyncIgnoreList(baseDir string) *SyncIgnoreList {
	ignore := gitignore.CompileIgnoreLines(defaultIgnoreLines...)
	return &SyncIgnoreList{baseDir: baseDir, ignore: ignore}
}

func (s *SyncIgnoreList) ShouldIgnore(path string) bool {
	return s.ignore.MatchesPath(path)
}
