package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/registry"
)

func TestHealthOKWhenPoolIsLive(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"discard"}).AddRow(1))

	resp := h.health(registry.Request{Ctx: context.Background()})

	require.Equal(t, 200, resp.Status)
	body, ok := resp.Body.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "ok", body["status"])
}

func TestHealthDegradedWhenPoolPingFails(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection reset"))

	resp := h.health(registry.Request{Ctx: context.Background()})

	require.Equal(t, 200, resp.Status)
	body, ok := resp.Body.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "degraded", body["status"])
}
