package server

import (
	"context"
	"net/http"
	"testing"

	"weebchat/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	_, app := newTestServer(t, rdb)

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/ws/ticket", "uid-1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, 30, body.ExpiresIn)

	// The ticket is redeemable exactly once.
	ctx := context.Background()
	payload, err := middleware.RedeemWSTicket(ctx, rdb, body.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", payload.Uid)

	_, err = middleware.RedeemWSTicket(ctx, rdb, body.Ticket)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestIssueWSTicket_RequiresAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	_, app := newTestServer(t, rdb)

	req, _ := http.NewRequest(http.MethodPost, "/api/ws/ticket", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueWSTicket_WithoutRedis(t *testing.T) {
	_, app := newTestServer(t, nil)

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/ws/ticket", "uid-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
