package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-zip-analyzer/internal/resume"
)

type member struct {
	name string
	body string
}

func buildZip(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUnpackClassifiesMembers(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t,
		member{name: "readme.txt", body: "ignore me"},
		member{name: "resumes/", body: ""},
		member{name: "resumes/bob.DOCX", body: "docx-bytes"},
		member{name: "alice.pdf", body: "pdf-bytes"},
		member{name: "__MACOSX/._alice.pdf", body: "fork"},
	)

	s, err := Unpacker{Root: root}.Unpack(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Files, 2)
	assert.Equal(t, "alice.pdf", s.Files[0].Name)
	assert.Equal(t, resume.KindPDF, s.Files[0].Kind)
	assert.Equal(t, "resumes/bob.DOCX", s.Files[1].Name)
	assert.Equal(t, resume.KindDOCX, s.Files[1].Kind)
	assert.Equal(t, []string{"__MACOSX/._alice.pdf", "readme.txt"}, s.Skipped)

	got, err := os.ReadFile(s.Files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(got))
	assert.True(t, strings.HasPrefix(s.Files[1].Path, s.Dir))
}

func TestUnpackKeepsDuplicateNamesApart(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t,
		member{name: "alice.pdf", body: "first"},
		member{name: "Alice.pdf", body: "case-folded"},
		member{name: "alice.pdf", body: "second"},
	)

	s, err := Unpacker{Root: root}.Unpack(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Files, 3)
	var names, bodies []string
	paths := map[string]bool{}
	for _, f := range s.Files {
		got, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		names = append(names, f.Name)
		bodies = append(bodies, string(got))
		paths[f.Path] = true
		assert.Equal(t, resume.KindPDF, resume.KindFromName(f.Path))
	}
	assert.Equal(t, []string{"Alice.pdf", "alice.pdf", "alice.pdf"}, names)
	assert.Equal(t, []string{"case-folded", "first", "second"}, bodies, "duplicates keep archive order and their own bytes")
	assert.Len(t, paths, 3)
}

func TestUnpackSkipsTraversal(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t,
		member{name: "../escape.pdf", body: "x"},
		member{name: "ok.pdf", body: "y"},
	)

	s, err := Unpacker{Root: root}.Unpack(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Files, 1)
	assert.Equal(t, "ok.pdf", s.Files[0].Name)
	assert.Contains(t, s.Skipped, "../escape.pdf")
	_, statErr := os.Stat(filepath.Join(root, "escape.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackRejectsInvalidArchive(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "garbage", data: []byte("definitely not a zip file")},
		{name: "empty", data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			s, err := Unpacker{Root: root}.Unpack(context.Background(), bytes.NewReader(tt.data), "bad.zip")
			require.Error(t, err)
			assert.Nil(t, s)

			var archiveErr *Error
			require.True(t, errors.As(err, &archiveErr), "expected *archive.Error, got %T", err)
			assert.Equal(t, "bad.zip", archiveErr.Name)

			entries, readErr := os.ReadDir(root)
			require.NoError(t, readErr)
			assert.Empty(t, entries, "scratch dir must be removed on failure")
		})
	}
}

func TestUnpackMemberSizeLimit(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t, member{name: "big.pdf", body: strings.Repeat("a", 64)})

	_, err := Unpacker{Root: root, MaxMemberBytes: 16}.Unpack(context.Background(), bytes.NewReader(data), "big.zip")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMemberTooLarge)

	var archiveErr *Error
	assert.True(t, errors.As(err, &archiveErr))
}

func TestUnpackMemberCountLimit(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t,
		member{name: "a.pdf", body: "1"},
		member{name: "b.pdf", body: "2"},
		member{name: "c.txt", body: "3"},
	)

	_, err := Unpacker{Root: root, MaxMembers: 2}.Unpack(context.Background(), bytes.NewReader(data), "many.zip")
	assert.ErrorIs(t, err, ErrTooManyMembers)
}

func TestScratchCloseRemovesTree(t *testing.T) {
	root := t.TempDir()
	data := buildZip(t, member{name: "nested/deep/alice.pdf", body: "x"})

	s, err := Unpacker{Root: root}.Unpack(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	dir := s.Dir

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Unpacker{Root: t.TempDir()}.Unpack(ctx, bytes.NewReader(nil), "x.zip")
	assert.ErrorIs(t, err, context.Canceled)
}
