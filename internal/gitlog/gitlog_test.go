package gitlog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommits(n int) []Commit {
	commits := make([]Commit, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	parent := ""
	for i := range commits {
		hash := hashFor(i)
		commits[i] = Commit{
			Hash:       hash,
			ParentHash: parent,
			Message:    "commit message",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		parent = hash
	}
	return commits
}

func hashFor(i int) string {
	return string(rune('a'+i)) + "000000000000"
}

func TestMemoryExtractor_Log(t *testing.T) {
	ex := NewMemoryExtractorFromCommits(testCommits(5))

	records, err := ex.Log(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, hashFor(0), records[0].Commit.Hash)
	assert.Equal(t, hashFor(4), records[4].Commit.Hash)
}

func TestMemoryExtractor_LogLimitKeepsNewest(t *testing.T) {
	ex := NewMemoryExtractorFromCommits(testCommits(5))

	records, err := ex.Log(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, hashFor(3), records[0].Commit.Hash)
	assert.Equal(t, hashFor(4), records[1].Commit.Hash)
}

func TestMemoryExtractor_LogSince(t *testing.T) {
	ex := NewMemoryExtractorFromCommits(testCommits(5))

	records, err := ex.LogSince(context.Background(), hashFor(2))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, hashFor(3), records[0].Commit.Hash)
}

func TestMemoryExtractor_LogSinceUnknownFrontier(t *testing.T) {
	ex := NewMemoryExtractorFromCommits(testCommits(3))

	_, err := ex.LogSince(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrFrontierUnreachable)
}

func TestMemoryExtractor_Head(t *testing.T) {
	ex := NewMemoryExtractorFromCommits(testCommits(3))

	head, err := ex.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hashFor(2), head)

	empty := NewMemoryExtractor(nil)
	head, err = empty.Head(context.Background())
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestCommit_Text(t *testing.T) {
	c := Commit{Message: "fix oauth", DiffText: "auth/token.go"}
	assert.Equal(t, "fix oauth auth/token.go", c.Text())

	c.DiffText = ""
	assert.Equal(t, "fix oauth", c.Text())
}

func TestParseLog_WellFormedRecords(t *testing.T) {
	g := &GitExtractor{logger: slog.Default()}
	raw := recordSep + "abc123" + fieldSep + "def456 aaa111" + fieldSep + "1767225600" + fieldSep +
		"fix oauth token bug" + fieldSep + "\n\nauth/oauth.go\nauth/token.go\n" +
		recordSep + "def456" + fieldSep + "" + fieldSep + "1767225660" + fieldSep +
		"initial commit" + fieldSep + "\n\nmain.go\n"

	records := g.parseLog([]byte(raw))
	require.Len(t, records, 2)

	first := records[0]
	require.NoError(t, first.Err)
	assert.Equal(t, "abc123", first.Commit.Hash)
	assert.Equal(t, "def456", first.Commit.ParentHash)
	assert.Equal(t, "fix oauth token bug", first.Commit.Message)
	assert.Equal(t, "auth/oauth.go auth/token.go", first.Commit.DiffText)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), first.Commit.Timestamp)

	second := records[1]
	require.NoError(t, second.Err)
	assert.Empty(t, second.Commit.ParentHash)
}

func TestParseLog_MalformedRecordIsSkippedNotFatal(t *testing.T) {
	g := &GitExtractor{logger: slog.Default()}
	raw := recordSep + "abc123" + fieldSep + "" + fieldSep + "notatime" + fieldSep + "msg" + fieldSep + "\n" +
		recordSep + "def456" + fieldSep + "" + fieldSep + "1767225600" + fieldSep + "ok" + fieldSep + "\n"

	records := g.parseLog([]byte(raw))
	require.Len(t, records, 2)

	assert.Error(t, records[0].Err)
	assert.Equal(t, "abc123", records[0].Commit.Hash)
	assert.NoError(t, records[1].Err)
}

func TestParseLog_TruncatesLongMessagesAndFileLists(t *testing.T) {
	g := &GitExtractor{logger: slog.Default()}

	long := make([]byte, 0, 600)
	for i := 0; i < 600; i++ {
		long = append(long, 'x')
	}
	files := ""
	for i := 0; i < 30; i++ {
		files += "file.go\n"
	}
	raw := recordSep + "abc123" + fieldSep + "" + fieldSep + "1767225600" + fieldSep +
		string(long) + fieldSep + "\n\n" + files

	records := g.parseLog([]byte(raw))
	require.Len(t, records, 1)
	require.NoError(t, records[0].Err)

	assert.Len(t, records[0].Commit.Message, 500)
	assert.Len(t, splitWords(records[0].Commit.DiffText), 20)
}

func TestParseLog_TruncationKeepsValidUTF8(t *testing.T) {
	g := &GitExtractor{logger: slog.Default()}

	// A multi-byte rune straddles the truncation boundary.
	body := strings.Repeat("a", 499) + "é" + strings.Repeat("b", 100)
	raw := recordSep + "abc123" + fieldSep + "" + fieldSep + "1767225600" + fieldSep +
		body + fieldSep + "\n"

	records := g.parseLog([]byte(raw))
	require.Len(t, records, 1)
	require.NoError(t, records[0].Err)

	msg := records[0].Commit.Message
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, strings.Repeat("a", 499), msg)
}

func splitWords(s string) []string {
	var out []string
	word := ""
	for _, r := range s {
		if r == ' ' {
			if word != "" {
				out = append(out, word)
			}
			word = ""
			continue
		}
		word += string(r)
	}
	if word != "" {
		out = append(out, word)
	}
	return out
}

func TestParseShortstat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"insertions and deletions", "3 files changed, 10 insertions(+), 2 deletions(-)", 12},
		{"insertions only", "1 file changed, 5 insertions(+)", 5},
		{"deletion singular", "1 file changed, 1 deletion(-)", 1},
		{"empty", "", 0},
		{"no changes", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseShortstat(tt.in))
		})
	}
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 2, countLines(" M main.go\n?? notes.txt\n"))
}

func TestClampMinutes(t *testing.T) {
	assert.Equal(t, 0, clampMinutes(-time.Minute))
	assert.Equal(t, 90, clampMinutes(90*time.Minute))
}

func TestMemoryExtractor_WorktreeReturnsFixedMetrics(t *testing.T) {
	ex := NewMemoryExtractor(nil)
	ex.SetWorktree(WorktreeMetrics{BranchName: "feature", UncommittedLines: 42})

	m, err := ex.Worktree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feature", m.BranchName)
	assert.Equal(t, 42, m.UncommittedLines)
}

func TestNewGitExtractor_RejectsNonRepository(t *testing.T) {
	_, err := NewGitExtractor(t.TempDir(), slog.Default())
	assert.True(t, errors.Is(err, ErrNotARepository))
}
