package blastdb

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogicalName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"nr.00.tar.gz", "nr"},
		{"est.tar.gz", "est"},
		{"est_others.tar.gz", "est_others"},
		{"taxdb.tar.gz.md5", "taxdb"},
		{"README", "README"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, LogicalName(tt.file))
		})
	}
}

func TestFilterFiles(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		names []string
		want  []string
	}{
		{
			name:  "substring is not a match",
			files: []string{"est.tar.gz", "nr.00.tar.gz", "wgs.00.tar.gz", "est_others.tar.gz"},
			names: []string{"est", "nr"},
			want:  []string{"est.tar.gz", "nr.00.tar.gz"},
		},
		{
			name:  "prefix without separator is not a match",
			files: []string{"nr.00.tar.gz", "nrdb.tar.gz", "nrX.tar.gz"},
			names: []string{"nr"},
			want:  []string{"nr.00.tar.gz"},
		},
		{
			name:  "checksum companions are kept",
			files: []string{"nr.00.tar.gz", "nr.00.tar.gz.md5", "nt.00.tar.gz", "nt.00.tar.gz.md5"},
			names: []string{"nr"},
			want:  []string{"nr.00.tar.gz", "nr.00.tar.gz.md5"},
		},
		{
			name:  "bare name without extension is skipped",
			files: []string{"nr", "nr.00.tar.gz"},
			names: []string{"nr"},
			want:  []string{"nr.00.tar.gz"},
		},
		{
			name:  "dotted name selects one volume",
			files: []string{"nr.00.tar.gz", "nr.00.tar.gz.md5", "nr.01.tar.gz", "nrdb.tar.gz"},
			names: []string{"nr.00"},
			want:  []string{"nr.00.tar.gz", "nr.00.tar.gz.md5"},
		},
		{
			name:  "no names selects nothing",
			files: []string{"nr.00.tar.gz"},
			names: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterFiles(tt.files, tt.names))
		})
	}
}

func TestFilterFiles_OnlyRequestedNames(t *testing.T) {
	files := []string{"16S_ribosomal_RNA.tar.gz", "nr.00.tar.gz", "nr.01.tar.gz", "nt.00.tar.gz", "pdbaa.tar.gz", "taxdb.tar.gz"}
	names := []string{"nr", "taxdb"}

	for _, f := range FilterFiles(files, names) {
		assert.Contains(t, names, LogicalName(f))
	}
}

func TestArchives(t *testing.T) {
	files := []string{"nr.00.tar.gz", "nr.00.tar.gz.md5", "nr-prot-metadata.json"}
	assert.Equal(t, []string{"nr.00.tar.gz"}, Archives(files, ".tar.gz"))
}

func TestAvailableDatabases(t *testing.T) {
	files := []string{
		"nt.00.tar.gz", "nt.00.tar.gz.md5",
		"nr.01.tar.gz", "nr.00.tar.gz",
		"README", "nr-prot-metadata.json",
		"est.tar.gz",
	}

	assert.Equal(t, []string{"est", "nr", "nt"}, AvailableDatabases(files))
}

func TestUnmatched(t *testing.T) {
	files := []string{"nr.00.tar.gz", "taxdb.tar.gz"}
	assert.Equal(t, []string{"bogus"}, Unmatched(files, []string{"nr", "bogus", "taxdb"}))
	assert.Equal(t, []string{"nr.01"}, Unmatched(files, []string{"nr.00", "nr.01"}))
}

func TestReadChecksum(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{"digest and name", "d41d8cd98f00b204e9800998ecf8427e  nr.00.tar.gz\n", "d41d8cd98f00b204e9800998ecf8427e", nil},
		{"digest only", "abc123", "abc123", nil},
		{"leading blank line", "\n   \nabc123 x\n", "abc123", nil},
		{"empty", "", "", ErrEmptyChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.md5")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			got, err := ReadChecksum(path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileDigest_BlockSizeIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	data := []byte(strings.Repeat("blast", 50000))
	require.NoError(t, os.WriteFile(path, data, 0644))

	sum := md5.Sum(data)
	want := hex.EncodeToString(sum[:])

	for _, bs := range []int{1, 7, 4096, DefaultBlockSize, 0} {
		got, err := FileDigest(path, bs)
		require.NoError(t, err)
		assert.Equal(t, want, got, "block size %d", bs)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "nr.00.tar.gz")
	checksum := archive + ".md5"

	data := []byte("pretend this is a tarball")
	require.NoError(t, os.WriteFile(archive, data, 0644))
	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])

	t.Run("matching digest", func(t *testing.T) {
		require.NoError(t, os.WriteFile(checksum, []byte(digest+"  nr.00.tar.gz\n"), 0644))
		assert.NoError(t, Validate(archive, checksum, DefaultBlockSize))
	})

	t.Run("one flipped character", func(t *testing.T) {
		flipped := []byte(digest)
		if flipped[0] == '0' {
			flipped[0] = '1'
		} else {
			flipped[0] = '0'
		}
		require.NoError(t, os.WriteFile(checksum, append(flipped, []byte("  nr.00.tar.gz\n")...), 0644))

		err := Validate(archive, checksum, DefaultBlockSize)
		var mismatch *MismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, digest, mismatch.Got)
	})

	t.Run("missing checksum", func(t *testing.T) {
		err := Validate(archive, filepath.Join(dir, "absent.md5"), DefaultBlockSize)
		assert.ErrorIs(t, err, ErrMissingFile)
	})

	t.Run("missing archive", func(t *testing.T) {
		err := Validate(filepath.Join(dir, "absent.tar.gz"), checksum, DefaultBlockSize)
		assert.ErrorIs(t, err, ErrMissingFile)
	})
}
