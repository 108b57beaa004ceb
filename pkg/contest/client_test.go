package contest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cscenter/backend/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.ContestConfig{BaseURL: srv.URL + "/"}, "tok")
}

func TestRegisterParticipant_Created(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/contests/15/participants", r.URL.Path)
		assert.Equal(t, "ivanov", r.URL.Query().Get("login"))
		assert.Equal(t, "OAuth tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("777"))
	})

	status, pid, err := c.RegisterParticipant(context.Background(), 15, "ivanov")
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, status)
	assert.Equal(t, int64(777), pid)
}

func TestRegisterParticipant_AlreadyRegistered(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	status, pid, err := c.RegisterParticipant(context.Background(), 15, "ivanov")
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRegistered, status)
	assert.Zero(t, pid)
}

func TestRegisterParticipant_BadToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("expired"))
	})

	_, _, err := c.RegisterParticipant(context.Background(), 15, "ivanov")
	require.Error(t, err)
	assert.True(t, IsBadToken(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "expired", apiErr.Body)
}

func TestStandings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contests/3/standings", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{
			"titles": [{"name": "A"}, {"name": "B"}],
			"rows": [{"participantInfo": {"id": 9, "login": "petrov"}, "score": "7,5",
			          "problemResults": [{"score": "4"}, {"score": "3,5"}]}]
		}`))
	})

	s, err := c.Standings(context.Background(), 3, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, s.TitleNames())
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "petrov", s.Rows[0].ParticipantInfo.Login)
	assert.Equal(t, int64(9), s.Rows[0].ParticipantInfo.ID)
	assert.Equal(t, "3,5", s.Rows[0].ProblemResults[1].Score)
}

func TestStandings_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Standings(context.Background(), 3, 1, 50)
	require.Error(t, err)
	assert.False(t, IsBadToken(err))
}

func TestParseScore(t *testing.T) {
	cases := map[string]int{
		"7":    7,
		"7,4":  7,
		"7.6":  8,
		"2,5":  2,
		"3,5":  4,
		" 10 ": 10,
	}
	for in, want := range cases {
		got, err := ParseScore(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseScore("n/a")
	assert.Error(t, err)
}
