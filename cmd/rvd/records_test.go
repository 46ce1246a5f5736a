package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliasrobotics/RVD-sub000/internal/deduplication"
	"github.com/aliasrobotics/RVD-sub000/internal/repl"
	"github.com/aliasrobotics/RVD-sub000/internal/schema"
	"github.com/aliasrobotics/RVD-sub000/internal/storage/sqlite"
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), ".rvd", "rvd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = parseID("#7")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	for _, bad := range []string{"", "#", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRecordsAndCorpus(t *testing.T) {
	records := []*types.Record{
		{ID: 9, Body: "id: 1\ntype: vulnerability\ndescription: stack overflow\n", Labels: []string{types.LabelDuplicate}},
		{ID: 3, Body: "id: 3\ntype: weakness\n"},
		{ID: 5, Body: "```yaml\n- broken\n```\n"},
	}
	parsed, malformed := parseRecords(records)
	require.Len(t, parsed, 2)
	require.Len(t, malformed, 1)
	assert.Equal(t, 5, malformed[0].ID)
	assert.Equal(t, 9, parsed[0].flaw.ID, "tracker id wins over the body id")

	corpus := dedupCorpus(parsed)
	require.Len(t, corpus, 2)
	assert.Equal(t, 3, corpus[0].ID)
	assert.Equal(t, 9, corpus[1].ID)
	assert.True(t, corpus[1].Duplicate)
	assert.False(t, corpus[0].Duplicate)
}

func TestCheckRecord(t *testing.T) {
	problems := checkRecord(&types.Record{ID: 1, Body: "not: [valid"})
	assert.Contains(t, problems, "body")

	problems = checkRecord(&types.Record{ID: 1, Body: "id: 1\ncwe: CVE-1\n"})
	assert.Contains(t, problems, "cwe")

	doc := schema.DefaultDocument()
	doc["id"] = 1
	body, err := types.FormatIssueBody(doc)
	require.NoError(t, err)
	assert.Empty(t, checkRecord(&types.Record{ID: 1, Body: body}))
}

func TestRenderRecordTable(t *testing.T) {
	out := renderRecordTable([]*types.Record{
		{ID: 1, Title: "RVD#1: overflow", Body: "type: vulnerability\n", Labels: []string{"vulnerability", "triage"}},
		{ID: 2, Title: "broken", Body: "- x\n", Labels: []string{"malformed"}},
	})
	assert.Contains(t, out, "RVD#1: overflow")
	assert.Contains(t, out, "vulnerability, triage")
	assert.Contains(t, out, "malformed")
	assert.Contains(t, out, "2 RECORDS", "footers are upper-cased")
}

func TestPushDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var recs []*types.Record
	for _, title := range []string{"a", "b", "c"} {
		rec, err := store.CreateRecord(ctx, title, "type: vulnerability\n", []string{types.LabelTriage})
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	recs[2].Labels = types.WithLabel(recs[2].Labels, types.LabelDuplicate)

	result := &deduplication.Result{Sets: []deduplication.DuplicateSet{{
		Members: []deduplication.Member{
			{ID: recs[0].ID}, {ID: recs[1].ID}, {ID: recs[2].ID, Duplicate: true},
		},
		Primary:    recs[0].ID,
		HasPrimary: true,
	}}}
	byID := map[int]*types.Record{}
	for _, r := range recs {
		byID[r.ID] = r
	}

	marked, err := pushDuplicates(ctx, store, result, byID)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := store.GetRecord(ctx, recs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{types.LabelDuplicate}, got.Labels)
	comments, err := store.GetComments(ctx, recs[1].ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Duplicate of #1", comments[0].Body)

	delete(byID, recs[1].ID)
	recs[1].Labels = nil
	_, err = pushDuplicates(ctx, store, result, byID)
	assert.ErrorContains(t, err, "not in the corpus")
}

func TestSaveRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec, err := store.CreateRecord(ctx, "old", "- broken\n", []string{types.LabelMalformed, types.LabelWeakness, types.LabelTriage})
	require.NoError(t, err)

	doc := schema.DefaultDocument()
	doc["title"] = "Use after free in planner"
	doc["type"] = "vulnerability"
	doc["id"] = 99

	var save repl.SaveFunc = saveRecord(store, rec)
	require.NoError(t, save(ctx, doc))

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "RVD#1: Use after free in planner", got.Title)
	assert.ElementsMatch(t, []string{types.LabelTriage, types.LabelVulnerability}, got.Labels)

	flaw, err := got.Flaw()
	require.NoError(t, err)
	assert.Equal(t, 1, flaw.ID)
	assert.True(t, flaw.Validate())
	assert.Equal(t, got.Title, rec.Title)
}

func TestEditDocumentFallbackKeepsBareTitle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec, err := store.CreateRecord(ctx, "RVD#1: Use after free in planner", "- broken\n", []string{types.LabelMalformed})
	require.NoError(t, err)

	doc := editDocument(rec)
	assert.Equal(t, "Use after free in planner", doc["title"])
	assert.Equal(t, rec.ID, doc["id"])

	doc["type"] = "weakness"
	require.NoError(t, saveRecord(store, rec)(ctx, doc))

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "RVD#1: Use after free in planner", got.Title)
}

func TestFatalReleasesLock(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = os.Exit })

	closed := false
	onExit(func() { closed = true })
	acquireLock("test")
	lockPath := filepath.Join(dir, ".rvd", ".lock")
	require.FileExists(t, lockPath)

	fatalf("tracker unavailable")
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, lockPath)
	assert.True(t, closed)
	assert.Empty(t, cleanups)

	acquireLock("test")
	exit(0)
	assert.Equal(t, 0, code)
	assert.NoFileExists(t, lockPath)
}
