package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"resume-zip-analyzer/internal/resume"
	"resume-zip-analyzer/internal/shared/util"
)

const (
	defaultMaxMemberBytes = 25 << 20
	defaultMaxMembers     = 500

	uploadFileName = "upload.zip"
	membersDir     = "members"
	macOSXPrefix   = "__MACOSX/"
)

// Error reports an archive that cannot be listed at all. It is fatal to the run.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid archive: %v", e.Err)
	}
	return fmt.Sprintf("invalid archive %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrEmptyArchive   = errors.New("archive is empty")
	ErrMemberTooLarge = errors.New("archive member exceeds size limit")
	ErrTooManyMembers = errors.New("archive has too many members")
)

// Unpacker expands uploaded ZIP archives into run-scoped scratch directories.
type Unpacker struct {
	// Root is the parent for scratch directories; empty means os.TempDir().
	Root           string
	MaxMemberBytes int64
	MaxMembers     int
}

// Scratch is the exclusively owned extraction area of one analysis run.
type Scratch struct {
	Dir string
	// Files are the recognized members, sorted by archive name.
	Files []resume.File
	// Skipped lists members that were not materialized: unsupported
	// extensions, resource forks and unsafe names.
	Skipped []string
}

// Close removes the scratch tree. It is safe to call more than once.
func (s *Scratch) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	dir := s.Dir
	s.Dir = ""
	return os.RemoveAll(dir)
}

// Unpack writes r into a new scratch directory and expands its members. On
// error nothing is left on disk.
func (u Unpacker) Unpack(ctx context.Context, r io.Reader, name string) (_ *Scratch, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(u.Root, "analysis-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	scratch := &Scratch{Dir: dir}
	defer func() {
		if err != nil {
			_ = scratch.Close()
		}
	}()

	zipPath := filepath.Join(dir, uploadFileName)
	size, err := writeFile(zipPath, r)
	if err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}
	if size == 0 {
		return nil, &Error{Name: name, Err: ErrEmptyArchive}
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, &Error{Name: name, Err: err}
	}
	// Insecure names are filtered per member below.
	err = nil
	defer zr.Close()

	if err := u.expand(ctx, scratch, zr.File, name); err != nil {
		return nil, err
	}
	sort.SliceStable(scratch.Files, func(i, j int) bool { return scratch.Files[i].Name < scratch.Files[j].Name })
	sort.Strings(scratch.Skipped)
	return scratch, nil
}

func (u Unpacker) expand(ctx context.Context, scratch *Scratch, members []*zip.File, archiveName string) error {
	maxMembers := u.MaxMembers
	if maxMembers <= 0 {
		maxMembers = defaultMaxMembers
	}
	maxBytes := u.MaxMemberBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMemberBytes
	}

	root := filepath.Join(scratch.Dir, membersDir)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return fmt.Errorf("create members dir: %w", err)
	}

	count := 0
	for _, f := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		count++
		if count > maxMembers {
			return &Error{Name: archiveName, Err: ErrTooManyMembers}
		}

		rel, err := util.SafeRelPath(f.Name)
		if err != nil {
			scratch.Skipped = append(scratch.Skipped, f.Name)
			continue
		}
		kind := resume.KindFromName(rel)
		if strings.HasPrefix(rel, macOSXPrefix) || !kind.Supported() {
			scratch.Skipped = append(scratch.Skipped, rel)
			continue
		}
		if f.UncompressedSize64 > uint64(maxBytes) {
			return &Error{Name: archiveName, Err: fmt.Errorf("%s: %w", rel, ErrMemberTooLarge)}
		}

		// Each member gets its own directory so duplicate or case-folded
		// names never share a file.
		dest := filepath.Join(root, strconv.Itoa(len(scratch.Files)), path.Base(rel))
		if err := extractMember(f, dest, maxBytes); err != nil {
			if errors.Is(err, ErrMemberTooLarge) || errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
				return &Error{Name: archiveName, Err: fmt.Errorf("%s: %w", rel, err)}
			}
			return fmt.Errorf("extract %s: %w", rel, err)
		}
		scratch.Files = append(scratch.Files, resume.File{Path: dest, Name: rel, Kind: kind})
	}
	return nil
}

func extractMember(f *zip.File, dest string, maxBytes int64) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	// Declared sizes can lie; cap what is actually inflated.
	n, copyErr := io.Copy(out, io.LimitReader(rc, maxBytes+1))
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if n > maxBytes {
		return ErrMemberTooLarge
	}
	return closeErr
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
