package analysis

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-zip-analyzer/internal/archive"
	"resume-zip-analyzer/internal/extract"
	"resume-zip-analyzer/internal/inference"
	"resume-zip-analyzer/internal/llm"
	"resume-zip-analyzer/internal/notify"
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

func buildDOCX(t *testing.T, paragraphs ...string) string {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
	return string(buildZip(t,
		member{name: "word/document.xml", body: document},
		member{name: "word/_rels/document.xml.rels", body: rels},
	))
}

// textExtractor returns file contents verbatim.
type textExtractor struct{}

func (textExtractor) ExtractFile(ctx context.Context, path string, kind resume.Kind) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &extract.UnreadableDocumentError{Path: path, Kind: kind, Err: err}
	}
	return string(data), nil
}

// stubInferrer derives a record from the first line of the text.
type stubInferrer struct {
	mu       sync.Mutex
	calls    []string
	failOn   map[string]error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (s *stubInferrer) Infer(ctx context.Context, text string) (resume.Record, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	name := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if err, ok := s.failOn[name]; ok {
		return resume.Record{}, err
	}
	email := strings.ToLower(strings.Fields(name + " x")[0]) + "@x.com"
	return resume.NewRecord(name, email, []string{"Go"}, "Engineer"), nil
}

func (s *stubInferrer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []notify.Update
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, u notify.Update) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	return n.err
}

func (n *recordingNotifier) statuses() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.updates))
	for _, u := range n.updates {
		out = append(out, u.Status)
	}
	return out
}

func newService(t *testing.T, inf Inferrer) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	return &Service{
		Unpacker:  archive.Unpacker{Root: root},
		Extractor: textExtractor{},
		Inferrer:  inf,
	}, root
}

func assertScratchRemoved(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories must be removed")
}

func TestAnalyzeOneOutcomePerRecognizedMember(t *testing.T) {
	inf := &stubInferrer{}
	svc, root := newService(t, inf)
	data := buildZip(t,
		member{name: "carol.pdf", body: "Carol King"},
		member{name: "alice.pdf", body: "Alice Smith"},
		member{name: "team/bob.docx", body: "Bob Jones"},
		member{name: "notes.md", body: "skip"},
		member{name: "__MACOSX/._alice.pdf", body: "fork"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, []string{"alice.pdf", "carol.pdf", "team/bob.docx"}, filenames(report))
	assert.Equal(t, 3, report.Succeeded())
	assert.Zero(t, report.Failed())
	assert.Equal(t, []string{"__MACOSX/._alice.pdf", "notes.md"}, report.Skipped)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "batch.zip", report.ArchiveName)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, 3, inf.callCount())
	assertScratchRemoved(t, root)
}

func TestAnalyzePDFAndReadme(t *testing.T) {
	inf := &stubInferrer{}
	svc, _ := newService(t, inf)
	data := buildZip(t,
		member{name: "alice.pdf", body: "Alice Smith\nalice@x.com\nPython, Go"},
		member{name: "readme.txt", body: "not a resume"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.Equal(t, "alice.pdf", out.Filename)
	require.True(t, out.OK())
	assert.Equal(t, "Alice Smith", out.Record.Name)
	assert.Equal(t, []string{"readme.txt"}, report.Skipped)
}

func TestAnalyzeDuplicateMemberNames(t *testing.T) {
	inf := &stubInferrer{}
	svc, root := newService(t, inf)
	data := buildZip(t,
		member{name: "alice.pdf", body: "Alice Smith"},
		member{name: "alice.pdf", body: "Alicia Keys"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "Alice Smith", report.Outcomes[0].Record.Name)
	assert.Equal(t, "Alicia Keys", report.Outcomes[1].Record.Name)
	assertScratchRemoved(t, root)
}

func TestAnalyzeCorruptDOCXIsIsolated(t *testing.T) {
	inf := &stubInferrer{}
	svc, root := newService(t, inf)
	svc.Extractor = extract.New()
	data := buildZip(t,
		member{name: "alice.docx", body: buildDOCX(t, "Alice Smith", "alice@x.com")},
		member{name: "bob.docx", body: "definitely not a zip package"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	alice, bob := report.Outcomes[0], report.Outcomes[1]
	assert.Equal(t, "alice.docx", alice.Filename)
	require.True(t, alice.OK())
	assert.Equal(t, "Alice Smith", alice.Record.Name)

	assert.Equal(t, "bob.docx", bob.Filename)
	assert.Equal(t, resume.StatusFailed, bob.Status)
	assert.Equal(t, resume.ErrorCodeUnreadableDocument, bob.ErrorCode)
	assert.Nil(t, bob.Record)
	assert.True(t, strings.HasPrefix(bob.Error, "unreadable docx document bob.docx: "), bob.Error)
	assert.NotContains(t, bob.Error, root)

	again, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	assert.Equal(t, bob.Error, again.Outcomes[1].Error, "failure text must not depend on the scratch dir")

	assert.Equal(t, 2, inf.callCount(), "unreadable documents never reach the model")
	assertScratchRemoved(t, root)
}

func TestAnalyzeInferenceFailureIsIsolated(t *testing.T) {
	inf := &stubInferrer{failOn: map[string]error{
		"Bob Jones": &llm.ServiceError{Provider: "huggingface", Err: errors.New("connection reset by peer")},
	}}
	svc, _ := newService(t, inf)
	data := buildZip(t,
		member{name: "a.pdf", body: "Alice Smith"},
		member{name: "b.pdf", body: "Bob Jones"},
		member{name: "c.pdf", body: "Carol King"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	assert.True(t, report.Outcomes[0].OK())
	assert.Equal(t, resume.ErrorCodeInferenceService, report.Outcomes[1].ErrorCode)
	assert.Contains(t, report.Outcomes[1].Error, "connection reset")
	assert.True(t, report.Outcomes[2].OK())
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
}

type replyGenerator struct {
	replies map[string]string
	block   bool
}

func (g replyGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	for marker, reply := range g.replies {
		if strings.Contains(req.Prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("no reply configured")
}

func TestAnalyzeSchemaMismatchWithInferenceClient(t *testing.T) {
	gen := replyGenerator{replies: map[string]string{
		"Alice Smith": "```json\n{\"name\":\"Alice Smith\",\"email\":\"alice@x.com\",\"skills\":[\"Go\"],\"summary\":\"Backend\"}\n```",
		"Bob Jones":   `{"name":"Bob Jones","email":"bob@x.com"}`,
	}}
	svc, _ := newService(t, inference.NewClient(gen, 0))
	data := buildZip(t,
		member{name: "alice.pdf", body: "Alice Smith"},
		member{name: "bob.pdf", body: "Bob Jones"},
	)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.True(t, report.Outcomes[0].OK())
	assert.Equal(t, []string{"Go"}, report.Outcomes[0].Record.Skills)
	assert.Equal(t, resume.ErrorCodeSchemaParse, report.Outcomes[1].ErrorCode)
	assert.Nil(t, report.Outcomes[1].Record)
}

func TestAnalyzeInferenceTimeout(t *testing.T) {
	svc, _ := newService(t, inference.NewClient(replyGenerator{block: true}, 0))
	svc.InferenceTimeout = 20 * time.Millisecond
	data := buildZip(t, member{name: "slow.pdf", body: "Slow Sam"})

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, resume.ErrorCodeInferenceService, report.Outcomes[0].ErrorCode)
	assert.Contains(t, report.Outcomes[0].Error, "timed out")
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	data := buildZip(t,
		member{name: "b.pdf", body: "Bob Jones"},
		member{name: "a.docx", body: "Alice Smith"},
	)

	svc, _ := newService(t, &stubInferrer{})
	first, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)

	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAnalyzeInvalidArchive(t *testing.T) {
	inf := &stubInferrer{}
	svc, root := newService(t, inf)
	notifier := &recordingNotifier{}
	svc.Notifier = notifier

	report, err := svc.Analyze(context.Background(), strings.NewReader("this is not a zip"), "bad.zip")
	require.Error(t, err)
	assert.Nil(t, report)

	var archiveErr *archive.Error
	require.True(t, errors.As(err, &archiveErr))
	assert.Zero(t, inf.callCount())
	assert.Equal(t, []string{notify.StatusProcessing, notify.StatusFailed}, notifier.statuses())
	assertScratchRemoved(t, root)
}

func TestAnalyzeEmptyArchiveHasNoOutcomes(t *testing.T) {
	svc, _ := newService(t, &stubInferrer{})
	data := buildZip(t, member{name: "readme.txt", body: "nothing here"})

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, []string{"readme.txt"}, report.Skipped)
}

func TestAnalyzeConcurrentKeepsEveryOutcome(t *testing.T) {
	inf := &stubInferrer{delay: 5 * time.Millisecond}
	svc, root := newService(t, inf)
	svc.Concurrency = 4

	var members []member
	names := []string{"h", "c", "a", "j", "e", "b", "i", "d", "g", "f"}
	for _, n := range names {
		members = append(members, member{name: n + ".pdf", body: strings.ToUpper(n) + " Person"})
	}
	data := buildZip(t, members...)

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err)
	require.Len(t, report.Outcomes, len(names))
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf", "g.pdf", "h.pdf", "i.pdf", "j.pdf"}, filenames(report))
	for _, o := range report.Outcomes {
		require.True(t, o.OK(), o.Filename)
		assert.Equal(t, strings.ToUpper(strings.TrimSuffix(o.Filename, ".pdf"))+" Person", o.Record.Name)
	}
	assert.LessOrEqual(t, int(inf.maxSeen.Load()), 4)
	assert.Equal(t, len(names), inf.callCount())
	assertScratchRemoved(t, root)
}

type cancellingInferrer struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (c *cancellingInferrer) Infer(ctx context.Context, text string) (resume.Record, error) {
	c.calls.Add(1)
	c.cancel()
	return resume.NewRecord("X", "x@x.com", nil, ""), nil
}

func TestAnalyzeCancellationStopsRemainingFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inf := &cancellingInferrer{cancel: cancel}
	svc, root := newService(t, inf)
	data := buildZip(t,
		member{name: "a.pdf", body: "A"},
		member{name: "b.pdf", body: "B"},
		member{name: "c.pdf", body: "C"},
	)

	report, err := svc.Analyze(ctx, bytes.NewReader(data), "batch.zip")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Equal(t, int32(1), inf.calls.Load())
	assertScratchRemoved(t, root)
}

func TestAnalyzeNotifiesLifecycle(t *testing.T) {
	svc, _ := newService(t, &stubInferrer{})
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc.Notifier = notifier
	data := buildZip(t, member{name: "a.pdf", body: "Alice Smith"})

	report, err := svc.Analyze(context.Background(), bytes.NewReader(data), "batch.zip")
	require.NoError(t, err, "notifier failures never fail the run")
	assert.Equal(t, []string{notify.StatusProcessing, notify.StatusCompleted}, notifier.statuses())

	last := notifier.updates[len(notifier.updates)-1]
	assert.Equal(t, report.RunID, last.RunID)
	assert.Equal(t, 1, last.Succeeded)
}

func TestAnalyzeUnconfigured(t *testing.T) {
	var svc *Service
	_, err := svc.Analyze(context.Background(), strings.NewReader(""), "x.zip")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unreadable", err: &extract.UnreadableDocumentError{Err: errors.New("bad")}, want: resume.ErrorCodeUnreadableDocument},
		{name: "service", err: &llm.ServiceError{Err: errors.New("503")}, want: resume.ErrorCodeInferenceService},
		{name: "schema", err: &inference.SchemaParseError{Err: errors.New("missing")}, want: resume.ErrorCodeSchemaParse},
		{name: "other", err: errors.New("disk full"), want: resume.ErrorCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func filenames(r *resume.Report) []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Filename)
	}
	return out
}
