package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/state"
)

func ptr(s string) *string { return &s }

func completedCheckpoint() *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		SessionID: "s1",
		Phase:     checkpoint.PhaseCompleted,
		Rounds:    1,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		State: state.Snapshot{
			ID:            "s1",
			Conversation:  []state.Message{{ID: "u1", Role: state.RoleUser, Content: "EV batteries"}},
			ResearchBrief: ptr("EV battery supply chains"),
			Supervisor: []state.Message{
				{ID: "brief-s1", Role: state.RoleUser, Content: "EV battery supply chains"},
				{ID: "s1-r1-t1", Role: state.RoleTool, Name: "local", Content: "Topic: lithium \"brine\"\nLithium summary"},
			},
			RawNotes:    []string{"n1", "n1"},
			Notes:       []string{"n1"},
			FinalReport: ptr("# Report\n\nBody.\n"),
		},
	}
}

func TestExportSession(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	out := ExportSession(completedCheckpoint(), now)

	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "2025-06-02T00:00:00Z", out.ExportedAt)
	assert.Equal(t, "EV battery supply chains", out.ResearchBrief)
	assert.Equal(t, "# Report\n\nBody.\n", out.FinalReport)
	require.Len(t, out.Stages, 4)
	for _, s := range out.Stages {
		assert.True(t, s.Complete)
	}
	require.Len(t, out.Topics, 1)
	assert.Equal(t, TopicExport{ID: "s1-r1-t1", Topic: `lithium "brine"`, Summary: "Lithium summary", Researcher: "local"}, out.Topics[0])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, out))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "completed", decoded["phase"])
}

func TestMarkdown(t *testing.T) {
	md, err := Markdown(completedCheckpoint())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "<!--\nsession: s1\n"))
	assert.Contains(t, md, "brief: EV battery supply chains\n")
	assert.True(t, strings.HasSuffix(md, "# Report\n\nBody.\n"))

	cp := completedCheckpoint()
	cp.State.FinalReport = nil
	cp.Phase = checkpoint.PhaseAwaitingInput
	_, err = Markdown(cp)
	assert.True(t, errors.Is(err, ErrNoReport))
}

func TestGenerateMermaid(t *testing.T) {
	out := GenerateMermaid(completedCheckpoint())
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `S0["Clarify with user"]`)
	assert.Contains(t, out, "S2 --> S3")
	assert.Contains(t, out, `S2 -.-> T1(["lithium 'brine'"])`)
	assert.Contains(t, out, "class S3 done")

	failed := &checkpoint.Checkpoint{SessionID: "s2", Phase: checkpoint.PhaseFailed}
	assert.Contains(t, GenerateMermaid(failed), "class S0 failed")

	waiting := &checkpoint.Checkpoint{SessionID: "s3", Phase: checkpoint.PhaseAwaitingInput}
	assert.Contains(t, GenerateMermaid(waiting), "class S0 current")
}

func TestFileSink_Publish(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	locations, err := Publish(context.Background(), sink, completedCheckpoint())
	require.NoError(t, err)
	require.Len(t, locations, 3)

	for _, name := range []string{ReportFile, SessionFile, DiagramFile} {
		path := filepath.Join(dir, "s1", name)
		assert.Contains(t, locations, path)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestPublish_RequiresReport(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	cp := completedCheckpoint()
	cp.State.FinalReport = nil

	_, err = Publish(context.Background(), sink, cp)
	assert.True(t, errors.Is(err, ErrNoReport))
}

func TestFileSink_RejectsTraversal(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	for _, tc := range [][2]string{{"../x", "report.md"}, {"s1", "../../etc"}, {"", "report.md"}, {"s1", ""}} {
		_, err := sink.Put(context.Background(), tc[0], tc[1], []byte("x"))
		assert.Error(t, err, tc)
	}
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(config.ArtifactsConfig{Sink: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewSink(config.ArtifactsConfig{Sink: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, s)

	_, err = NewSink(config.ArtifactsConfig{Sink: "s3", Bucket: "reports"})
	assert.Error(t, err, "endpoint is required")

	s, err = NewSink(config.ArtifactsConfig{
		Sink: "s3", Endpoint: "localhost:9000", Bucket: "reports",
		AccessKey: "minio", SecretKey: "minio123",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Sink{}, s)

	_, err = NewSink(config.ArtifactsConfig{Sink: "ftp"})
	assert.Error(t, err)
}

func TestS3Sink_Put(t *testing.T) {
	endpoint := os.Getenv("DEEPRESEARCH_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("DEEPRESEARCH_TEST_S3_ENDPOINT not set")
	}
	sink, err := NewS3Sink(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("DEEPRESEARCH_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("DEEPRESEARCH_TEST_S3_SECRET_KEY"),
		Bucket:    "deepresearch-test",
	})
	require.NoError(t, err)

	loc, err := sink.Put(context.Background(), "s1", ReportFile, []byte("# Report"))
	require.NoError(t, err)
	assert.Equal(t, "s3://deepresearch-test/s1/report.md", loc)
}
