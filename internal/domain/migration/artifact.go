package migration

import (
	"path"
	"strings"
)

type ArtifactKind string

const (
	KindView         ArtifactKind = "view"
	KindSchema       ArtifactKind = "schema"
	KindFunction     ArtifactKind = "function"
	KindUnrecognized ArtifactKind = "unrecognized"
)

// KindFromName classifies an archive entry by the text after its last dot.
func KindFromName(name string) ArtifactKind {
	switch extension(name) {
	case "calculationview", "xml":
		return KindView
	case "hdbdd":
		return KindSchema
	case "hdbscalarfunction":
		return KindFunction
	default:
		return KindUnrecognized
	}
}

// SQLOutputName swaps the final extension for .sql, keeping the directory.
func SQLOutputName(name string) string {
	dir, file := path.Split(name)
	if i := strings.LastIndex(file, "."); i >= 0 {
		file = file[:i]
	}
	return dir + file + ".sql"
}

func extension(name string) string {
	_, file := path.Split(name)
	i := strings.LastIndex(file, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(file[i+1:])
}

// ArchiveEntry is one file read from an input archive.
type ArchiveEntry struct {
	Name    string
	Kind    ArtifactKind
	Content []byte
}

// ConvertedFile is one translated entry destined for the output archive.
type ConvertedFile struct {
	Name string
	SQL  string
}

// EntryResult records what happened to a single archive entry.
type EntryResult struct {
	Name       string
	OutputName string
	Kind       ArtifactKind
	Err        error
}

func (r EntryResult) Succeeded() bool {
	return r.Err == nil
}
