package formatter

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/normalize"
	"github.com/alexanderramin/bookable/internal/repository"
	"github.com/alexanderramin/bookable/internal/testutil"
	"github.com/alexanderramin/bookable/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetPlain(true)
	os.Exit(m.Run())
}

func intPtr(n int) *int { return &n }

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   *int
		want string
	}{
		{nil, "no duration"},
		{intPtr(45), "45m"},
		{intPtr(60), "1h"},
		{intPtr(90), "1h 30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestHumanTimestampFrom(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", HumanTimestampFrom(time.Time{}, now))
	assert.Equal(t, "Just now", HumanTimestampFrom(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", HumanTimestampFrom(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", HumanTimestampFrom(now.Add(-3*time.Hour), now))
	assert.Equal(t, "Feb 1, 2026", HumanTimestampFrom(now.AddDate(0, 0, -6), now))
}

func TestTruncID(t *testing.T) {
	assert.Equal(t, "abcdefgh", TruncID("abcdefghijkl"))
	assert.Equal(t, "abc", TruncID("abc"))
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable([]string{"A", "LONGER"}, [][]string{{"wide value", "x"}, {"y"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Index(lines[0], "LONGER"), strings.Index(lines[2], "x"))
	assert.Equal(t, "", RenderTable(nil, nil))
}

func TestRenderServiceTree(t *testing.T) {
	svc := testutil.NewTestService("Cut", testutil.WithNodeID("cut"), testutil.WithDuration(90), testutil.WithPrice(25),
		testutil.WithQuestions(testutil.NewTestQuestion("length")))
	root := testutil.NewTestRoot(
		testutil.NewTestGroup("Hair", []*domain.Node{svc}, testutil.WithNodeID("hair")),
		testutil.NewTestGroup("Nails", nil, testutil.WithNodeID("nails")),
	)

	out := RenderServiceTree(root, TreeOptions{ShowIDs: true, Flagged: map[string]bool{"cut": true}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Services")
	assert.Contains(t, lines[1], "├─ ▸ Hair hair")
	assert.Contains(t, lines[2], "│  └─ ✗ Cut cut")
	assert.Contains(t, lines[2], "[ 1h 30m · $25.00 · 1q ]")
	assert.Contains(t, lines[3], "└─ ▸ Nails")
}

func TestRenderServiceTree_Nil(t *testing.T) {
	assert.Contains(t, RenderServiceTree(nil, TreeOptions{}), "no service tree")
}

func TestFormatFormList(t *testing.T) {
	assert.Contains(t, FormatFormList(nil), "No forms")

	out := FormatFormList([]repository.FormSummary{
		{ID: "0123456789", Slug: "salon", InternalName: "Salon", IsEnabled: true, Version: 3, UpdatedAt: time.Now()},
	})
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "salon")
	assert.Contains(t, out, "LIVE")
	assert.Contains(t, out, "v3")
}

func TestFormatFormDetail(t *testing.T) {
	f := testutil.NewTestForm("Salon", testutil.WithSlug("salon"))
	f.Version = 2
	out := FormatFormDetail(f, validation.Validate(f), false)
	assert.Contains(t, out, "Salon")
	assert.Contains(t, out, "DRAFT")
	assert.Contains(t, out, "Haircuts")
	assert.Contains(t, out, "Ready to publish")
}

func TestFormatValidation_ListsIssuesWithTargets(t *testing.T) {
	f := testutil.NewTestForm("Salon", testutil.WithTree(testutil.NewTestRoot(
		testutil.NewTestService("Cut", testutil.WithNodeID("cut"), testutil.WithEmployees()),
	)))
	out := FormatValidation(validation.Validate(f))
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, string(validation.CodeServiceNoEmployees))
	assert.Contains(t, out, "fix in employees cut")
}

func TestFormatIntegrity(t *testing.T) {
	assert.Contains(t, FormatIntegrity(normalize.Report{IsValid: true}), "consistent")
	out := FormatIntegrity(normalize.Report{Errors: []string{"node x has no parent"}})
	assert.Contains(t, out, "1 integrity errors")
	assert.Contains(t, out, "node x has no parent")
}

func TestAutosaveBadge(t *testing.T) {
	assert.Contains(t, AutosaveBadge(autosave.State{Status: autosave.StatusIdle}), "saved")
	assert.Contains(t, AutosaveBadge(autosave.State{Status: autosave.StatusError, RetryCount: 2}), "retry 2")
	assert.Contains(t, AutosaveBadge(autosave.State{Status: autosave.StatusDirty, Err: autosave.ErrSaveBlocked}), "blocked")
}

func TestFormatRevisions(t *testing.T) {
	assert.Contains(t, FormatRevisions(nil), "No revisions")
	out := FormatRevisions([]*domain.FormRevision{
		{Version: 2, Hash: "abcdef0123456789", Form: &domain.FormConfig{InternalName: "Salon"}, CreatedAt: time.Now()},
	})
	assert.Contains(t, out, "v2")
	assert.Contains(t, out, "abcdef012345")
	assert.NotContains(t, out, "abcdef0123456")
}
