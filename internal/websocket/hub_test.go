package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRecorder struct {
	last atomic.Int64
}

func (c *countRecorder) UpdateClientsOnline(count int) { c.last.Store(int64(count)) }

func TestCheckOrigin(t *testing.T) {
	t.Run("通配符允许所有来源", func(t *testing.T) {
		up := upgraderFactory([]string{"*"})
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		assert.True(t, up.CheckOrigin(req))
	})

	t.Run("只放行列表内的来源", func(t *testing.T) {
		up := upgraderFactory([]string{"http://localhost:3000"})

		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		assert.True(t, up.CheckOrigin(req))

		req.Header.Set("Origin", "http://evil.example.com")
		assert.False(t, up.CheckOrigin(req))
	})

	t.Run("缺少来源头视为同源", func(t *testing.T) {
		up := upgraderFactory([]string{"http://localhost:3000"})
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		assert.True(t, up.CheckOrigin(req))
	})
}

func TestHubPublish(t *testing.T) {
	gin.SetMode(gin.TestMode)

	counter := &countRecorder{}
	hub := NewHub(nil, nil, counter, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/events", HandleWebSocket(hub))

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等待注册完成后广播
	assert.Eventually(t, func() bool { return counter.last.Load() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(EventFetched, map[string]int{"count": 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventFetched, msg.Event)

	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":3}`, string(data))
}
