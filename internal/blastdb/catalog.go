package blastdb

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// LogicalName returns the database a remote file belongs to: everything
// before the first dot.
//
//	LogicalName("nr.00.tar.gz")        // "nr"
//	LogicalName("est_others.tar.gz")   // "est_others"
//	LogicalName("taxdb.tar.gz.md5")    // "taxdb"
func LogicalName(file string) string {
	name, _, _ := strings.Cut(file, ".")
	return name
}

// FilterFiles returns the files, in listing order, that begin with one of
// names followed by a dot. Checksum companions match the same way as their
// archives.
//
// "nr" selects "nr.00.tar.gz" but never "nrdb.tar.gz" or
// "nr_cluster.tar.gz", and "nr.00" selects only that volume.
//
// Example:
//
//	files := []string{"est.tar.gz", "nr.00.tar.gz", "wgs.00.tar.gz", "est_others.tar.gz"}
//	FilterFiles(files, []string{"est", "nr"})
//	// []string{"est.tar.gz", "nr.00.tar.gz"}
func FilterFiles(files, names []string) []string {
	var out []string
	for _, f := range files {
		if selectedBy(f, names) {
			out = append(out, f)
		}
	}
	return out
}

func selectedBy(file string, names []string) bool {
	for _, n := range names {
		if n != "" && strings.HasPrefix(file, n+".") {
			return true
		}
	}
	return false
}

// Archives returns the files ending in suffix, in listing order.
func Archives(files []string, suffix string) []string {
	var out []string
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			out = append(out, f)
		}
	}
	return out
}

// AvailableDatabases returns the sorted, distinct logical names of every
// gzip file in the listing. Checksum files and metadata are ignored.
func AvailableDatabases(files []string) []string {
	names := mapset.NewSet[string]()
	for _, f := range files {
		if strings.HasSuffix(f, ".gz") {
			names.Add(LogicalName(f))
		}
	}

	out := names.ToSlice()
	sort.Strings(out)
	return out
}

// Unmatched returns the requested names that select no file in the listing,
// in request order.
func Unmatched(files, names []string) []string {
	var out []string
	for _, n := range names {
		if len(FilterFiles(files, []string{n})) == 0 {
			out = append(out, n)
		}
	}
	return out
}
