package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"inventory-erp/internal/core/auth"
	resp "inventory-erp/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func newJWTer(t *testing.T) *auth.JWTer {
	t.Helper()
	j, err := auth.NewJWTer(auth.IssuerConfig{
		Secret:   strings.Repeat("k", 32),
		Issuer:   "inventory-erp",
		Audience: "inventory-erp-clients",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return j
}

func do(r http.Handler, method, path, token string) resp.Resp {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestAuthJWT(t *testing.T) {
	j := newJWTer(t)
	r := gin.New()
	r.GET("/me", AuthJWT(j, ""), func(c *gin.Context) {
		c.JSON(http.StatusOK, resp.OK(gin.H{"uid": c.GetInt64(KeyUserID)}))
	})
	r.GET("/admin", AuthJWT(j, "Admin"), func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })
	r.GET("/perm", AuthJWT(j, ""), RequirePermission("Product.View"), func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })

	userTok, err := j.Issue(auth.Identity{ID: 7, Username: "alice"}, []string{"User"}, []string{"Product.View"})
	require.NoError(t, err)
	adminTok, err := j.Issue(auth.Identity{ID: 1, Username: "admin"}, []string{"Admin"}, nil)
	require.NoError(t, err)

	assert.Equal(t, resp.CodeUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, resp.CodeUnauthorized, do(r, http.MethodGet, "/me", "garbage").Code)

	out := do(r, http.MethodGet, "/me", userTok)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, float64(7), out.Data.(map[string]any)["uid"])

	assert.Equal(t, resp.CodeForbidden, do(r, http.MethodGet, "/admin", userTok).Code)
	assert.Equal(t, resp.CodeOK, do(r, http.MethodGet, "/admin", adminTok).Code)

	assert.Equal(t, resp.CodeOK, do(r, http.MethodGet, "/perm", userTok).Code)
	assert.Equal(t, resp.CodeForbidden, do(r, http.MethodGet, "/perm", adminTok).Code)
}

type fakeCounter struct {
	n   map[string]int64
	err error
}

func (f *fakeCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.n[key]++
	return f.n[key], window, nil
}

func TestLoginThrottle(t *testing.T) {
	counter := &fakeCounter{n: map[string]int64{}}
	r := gin.New()
	r.POST("/login", LoginThrottle(counter, 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, resp.OK(nil))
	})

	assert.Equal(t, resp.CodeOK, do(r, http.MethodPost, "/login", "").Code)
	assert.Equal(t, resp.CodeOK, do(r, http.MethodPost, "/login", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"code":429`)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// 计数器不可用时放行
	counter.err = errors.New("redis down")
	assert.Equal(t, resp.CodeOK, do(r, http.MethodPost, "/login", "").Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "bad id with spaces")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(KeyRequestID))
}

func TestMaskQuery(t *testing.T) {
	out := maskQuery(map[string][]string{"password": {"p"}, "Token": {"t"}, "q": {"alice"}})
	assert.Equal(t, []string{"****"}, out["password"])
	assert.Equal(t, []string{"****"}, out["Token"])
	assert.Equal(t, []string{"alice"}, out["q"])
}

func TestIPLimitersEvictIdle(t *testing.T) {
	set := newIPLimiters(rate.Every(time.Second), 2)
	now := time.Unix(1_700_000_000, 0)
	set.now = func() time.Time { return now }

	assert.True(t, set.allow("10.0.0.1"))
	assert.True(t, set.allow("10.0.0.1"))
	assert.False(t, set.allow("10.0.0.1"))
	for i := 0; i < 50; i++ {
		set.allow("10.0.1." + strconv.Itoa(i))
	}
	assert.Equal(t, 51, set.size())

	// 一分钟后（>= 回满时间）新请求触发清理，只留下本次访问的 IP
	now = now.Add(time.Minute)
	assert.True(t, set.allow("10.0.0.1"))
	assert.Equal(t, 1, set.size())
}
