package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exogram/pkg/cognition"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "cognition.jsonl"))
	require.NoError(t, err)
	return store
}

func record(topic, summary string, age time.Duration) *CognitionRecord {
	return &CognitionRecord{
		ID:        topic + "-" + fmt.Sprint(age),
		Topic:     topic,
		CreatedAt: time.Now().UTC().Add(-age),
		Summary:   summary,
	}
}

func TestAppendAndListAll(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		r := record(fmt.Sprintf("topic-%d", i), "some task", 0)
		require.NoError(t, store.Append(r))
	}

	records, warnings, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 3)
	// Append order is preserved.
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("topic-%d", i), r.Topic, "record %d out of order", i)
	}
}

func TestAppendRejectsTopicless(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Append(&CognitionRecord{ID: "x"}))
}

func TestListAllSkipsCorruptLines(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(record("good-1", "first", 0)))

	f, err := os.OpenFile(store.Path(), os.O_WRONLY|os.O_APPEND, 0o600)
	require.NoError(t, err)
	f.WriteString("{this line is garbage\n")
	f.Close()

	require.NoError(t, store.Append(record("good-2", "second", 0)))

	records, warnings, err := store.ListAll()
	require.NoError(t, err)
	assert.Len(t, records, 2, "corrupt line must be skipped, not fatal")
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Line)
}

func TestRetrieveTopicFilterAndBoost(t *testing.T) {
	store := newTestStore(t)
	store.Append(record("file-expense", "file a travel expense report", 0))
	store.Append(record("search-flights", "search for flights to tokyo", 0))

	hits, err := store.Retrieve("file-expense", "expense", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "topic filter must exclude other topics")
	assert.Equal(t, "file-expense", hits[0].Record.Topic)
	assert.GreaterOrEqual(t, hits[0].Score, exactTopicBoost, "exact topic match must dominate the score")
}

func TestRetrieveKeywordScoring(t *testing.T) {
	store := newTestStore(t)
	store.Append(record("a", "submit a travel expense report with receipts", 0))
	store.Append(record("b", "search for cheap flights", 0))
	store.Append(record("c", "update profile picture", 0))

	hits, err := store.Retrieve("", "travel expense receipts", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "only the overlapping record should match")
	assert.Equal(t, "a", hits[0].Record.Topic)
}

func TestRetrieveRecencyBreaksTies(t *testing.T) {
	store := newTestStore(t)
	store.Append(record("old", "reset the account password", 90*24*time.Hour))
	store.Append(record("new", "reset the account password", 0))

	hits, err := store.Retrieve("", "password", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "new", hits[0].Record.Topic, "most recent record should rank first")
}

func TestRetrieveNoFilters(t *testing.T) {
	store := newTestStore(t)
	store.Append(record("old", "one", 48*time.Hour))
	store.Append(record("new", "two", 0))

	hits, err := store.Retrieve("", "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2, "no filters means every record")
	assert.Equal(t, "new", hits[0].Record.Topic, "most recent first")
}

func TestConcurrentAppends(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	const n = 20
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(record(fmt.Sprintf("t-%d", i), "concurrent", 0)))
		}(i)
	}
	wg.Wait()

	records, warnings, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, warnings, "interleaved writes must not corrupt lines")
	assert.Len(t, records, n)
}

func TestFromRich(t *testing.T) {
	rich := &cognition.RichCognitionRecord{
		Website: cognition.WebsiteInfo{
			Name:        "Acme Expenses",
			Category:    "finance",
			Description: "Expense portal",
		},
		Task: cognition.TaskInfo{Summary: "File an expense", Goal: "Submit a travel expense"},
		OperationFlow: []cognition.OperationPhase{
			{Phase: "entry", Description: "Fill the form"},
		},
		KeyElements: []cognition.KeyElement{
			{Name: "New report", Role: "button", Usage: "start"},
		},
		Knowledge: cognition.OperationKnowledge{
			NavigationPattern: "Reports tab",
			FormTips:          []string{"amounts use a dot decimal separator"},
			Precautions:       []string{"attach a receipt first"},
		},
		Meta: cognition.Meta{ID: "id-1", Topic: "file-expense", CreatedAt: time.Now().UTC()},
	}

	r := FromRich(rich)
	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, "file-expense", r.Topic)
	assert.Equal(t, "Submit a travel expense", r.Summary, "summary should prefer the goal")
	assert.Equal(t, []string{"finance"}, r.Tags)
	assert.NotEmpty(t, r.KeyPathFeatures, "key elements should become path features")
	assert.NotNil(t, r.Rich, "rich record must be embedded for wisdom building")
}
