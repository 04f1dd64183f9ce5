package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// DefaultChecksumSuffix is appended to an archive name to find its
// published checksum.
const DefaultChecksumSuffix = ".md5"

// DefaultScheme is the URL scheme used when Location.Scheme is empty.
const DefaultScheme = "ftp"

// Location describes where work items come from and where they land.
//
// Example:
//
//	loc := Location{
//	    Server:    "ftp.ncbi.nlm.nih.gov:21",
//	    RemoteDir: "blast/db",
//	    OutputDir: "/data/blastdb",
//	}
type Location struct {
	// Scheme is the transport of ArchiveURL and ChecksumURL. Defaults to
	// "ftp".
	Scheme string

	// Server is the host, or host:port, of the remote server.
	Server string

	// RemoteDir is the directory on the server holding the archives.
	RemoteDir string

	// OutputDir is the local directory archives are downloaded to and
	// extracted in. It should be absolute.
	OutputDir string

	// ChecksumSuffix is appended to the archive name to get the checksum
	// file name. Defaults to ".md5".
	ChecksumSuffix string
}

// WorkItem describes one archive to retrieve, verify and extract.
//
// Everything except Attempts is fixed at construction. Attempts is only
// touched by the worker that currently holds the item; the queue hands an
// item to one worker at a time.
//
// Example:
//
//	item := NewWorkItem("nr.00.tar.gz", loc)
//	// item.Name          = "nr"
//	// item.ArchiveURL    = "ftp://ftp.ncbi.nlm.nih.gov:21/blast/db/nr.00.tar.gz"
//	// item.LocalArchive  = "/data/blastdb/nr.00.tar.gz"
//	// item.LocalChecksum = "/data/blastdb/nr.00.tar.gz.md5"
type WorkItem struct {
	// Name is the logical database the archive belongs to.
	Name string

	// FileName is the archive's base name as listed by the server.
	FileName string

	// RemoteArchive and RemoteChecksum are paths on the server.
	RemoteArchive  string
	RemoteChecksum string

	// ArchiveURL and ChecksumURL are the fully qualified sources.
	ArchiveURL  string
	ChecksumURL string

	// LocalArchive and LocalChecksum are the destination paths.
	LocalArchive  string
	LocalChecksum string

	// Attempts counts failed passes that led to a retry.
	Attempts int
}

// NewWorkItem builds the work item for the archive fileName.
//
// Construction is deterministic: the same name and location always yield the
// same paths. Any directory components in fileName are dropped so an entry
// in a remote listing can never point outside loc.OutputDir.
func NewWorkItem(fileName string, loc Location) *WorkItem {
	suffix := loc.ChecksumSuffix
	if suffix == "" {
		suffix = DefaultChecksumSuffix
	}

	scheme := loc.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	base := path.Base(path.Clean("/" + filepath.ToSlash(fileName)))
	name, _, _ := strings.Cut(base, ".")

	remoteArchive := path.Join(loc.RemoteDir, base)
	remoteChecksum := remoteArchive + suffix

	localArchive := filepath.Join(loc.OutputDir, base)

	return &WorkItem{
		Name:           name,
		FileName:       base,
		RemoteArchive:  remoteArchive,
		RemoteChecksum: remoteChecksum,
		ArchiveURL:     fmt.Sprintf("%s://%s/%s", scheme, loc.Server, remoteArchive),
		ChecksumURL:    fmt.Sprintf("%s://%s/%s", scheme, loc.Server, remoteChecksum),
		LocalArchive:   localArchive,
		LocalChecksum:  localArchive + suffix,
	}
}

// Dir returns the directory the archive is downloaded to and extracted in.
func (w *WorkItem) Dir() string {
	return filepath.Dir(w.LocalArchive)
}

// String returns the archive file name.
func (w *WorkItem) String() string {
	return w.FileName
}
