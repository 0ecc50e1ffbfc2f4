package fixture_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/hangeul/internal/api"
	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/fixture"
	"github.com/abhisek/hangeul/internal/mediacache"
	"github.com/abhisek/hangeul/internal/session"
)

func startFixture(t *testing.T, opts fixture.Options) string {
	t.Helper()
	content, err := fixture.Sample()
	require.NoError(t, err)
	opts.Content = content
	opts.BasePath = "/api"
	srv := httptest.NewServer(fixture.NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestHTTPClientAgainstFixture(t *testing.T) {
	base := startFixture(t, fixture.Options{Token: "tok"})
	client := api.NewHTTPClient(api.Options{BaseURL: base, Token: "tok", Timeout: 5 * time.Second})
	ctx := context.Background()

	cats, err := client.Categories(ctx, assessment.TypeQuiz)
	require.NoError(t, err)
	require.Len(t, cats, 1)

	list, err := client.Assessments(ctx, cats[0].ID, "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	qs, err := client.AssessmentQuestions(ctx, "vowels-1")
	require.NoError(t, err)
	require.Len(t, qs, 4)
	assert.Equal(t, "A", qs[0].Options[0].ID)
	assert.Equal(t, assessment.MediaAudio, qs[2].MediaRefs[0].Type)

	res, err := client.SubmitAssessment(api.WithIdempotencyKey(ctx, "sess-1"), "vowels-1", assessment.SubmitRequest{
		Answers: []assessment.AnswerChoice{
			{QuestionID: "v1", OptionID: "A"},
			{QuestionID: "v2", OptionID: "C"},
			{QuestionID: "v3", OptionID: "B"},
		},
		TimeTakenSeconds: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Score)
	assert.False(t, res.Passed)

	hist, err := client.AssessmentResults(ctx, "vowels-1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 42, hist[0].TimeTakenSeconds)

	board, err := client.Leaderboard(ctx, assessment.TypeQuiz, "vowels-1")
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Jordan", board[0].DisplayName)
}

func TestHTTPClientAgainstFixture_Errors(t *testing.T) {
	base := startFixture(t, fixture.Options{Token: "tok", MinClientVersion: "2.0.0"})
	ctx := context.Background()

	noAuth := api.NewHTTPClient(api.Options{BaseURL: base, ClientVersion: "2.1.0"})
	_, err := noAuth.Categories(ctx, "")
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, 401, apiErr.StatusCode)

	old := api.NewHTTPClient(api.Options{BaseURL: base, Token: "tok", ClientVersion: "1.4.0"})
	_, err = old.Categories(ctx, "")
	assert.True(t, errors.Is(err, api.ErrClientOutdated))

	current := api.NewHTTPClient(api.Options{BaseURL: base, Token: "tok", ClientVersion: "2.0.0"})
	_, err = current.AssessmentQuestions(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestSessionAgainstFixture(t *testing.T) {
	base := startFixture(t, fixture.Options{})
	client := api.NewHTTPClient(api.Options{BaseURL: base, Timeout: 5 * time.Second})

	fetcher, err := mediacache.NewHTTPFetcher(mediacache.FetcherOptions{
		Dir:      t.TempDir(),
		MaxBytes: 1 << 20,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	cache := mediacache.New(mediacache.Options{Fetcher: fetcher, MaxConcurrent: 2})

	c := session.NewController(session.Options{
		Backend: client,
		Media:   cache,
		Forward: 1,
	})
	defer c.Close()

	list, err := client.Assessments(context.Background(), "hangeul-basics", "")
	require.NoError(t, err)
	var vowels assessment.Assessment
	for _, a := range list {
		if a.ID == "vowels-1" {
			vowels = a
		}
	}
	require.Equal(t, "vowels-1", vowels.ID)

	require.NoError(t, c.Start(vowels))
	require.Eventually(t, func() bool { return c.State().Status == session.StatusInProgress }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, c.State().Timed)

	for _, q := range c.State().Questions {
		require.NoError(t, c.Answer(q.ID, q.CorrectOptionID()))
	}

	require.NoError(t, c.GoTo(3))
	q, _ := c.State().Current()
	assets := q.Assets()
	require.Len(t, assets, 4)
	require.Eventually(t, func() bool {
		for _, a := range assets {
			if !cache.IsCached(a.URL) {
				return false
			}
		}
		return true
	}, 5*time.Second, 5*time.Millisecond)
	assert.NotEqual(t, assets[0].URL, cache.Get(assets[0].URL, assets[0].Type))

	require.NoError(t, c.Finish())
	require.Eventually(t, func() bool { return c.State().Status == session.StatusCompleted }, 5*time.Second, 5*time.Millisecond)

	s := c.State()
	require.NotNil(t, s.Result)
	assert.Equal(t, 100, s.Result.Score)
	assert.True(t, s.Result.Passed)
	assert.Equal(t, mediacache.Stats{}, cache.Stats())
}
