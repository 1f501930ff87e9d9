package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/botconsole/internal/database/mock"
	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/stretchr/testify/suite"
)

type MiddlewareTestSuite struct {
	suite.Suite
	router   *gin.Engine
	registry *gate.Registry
}

func (s *MiddlewareTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	store := cookie.NewStore([]byte("test-secret"))
	s.router.Use(sessions.Sessions("mysession", store))

	db := mock.NewMockDB()
	s.registry = gate.NewRegistry(0, func(browserID string) *gate.Orchestrator {
		return gate.New(session.NewStore(db, browserID), nil, gate.Options{})
	})

	whoami := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"browser": BrowserID(c),
			"csrf":    CSRFToken(c),
			"state":   Gate(c).State().String(),
		})
	}
	s.router.Use(BrowserSession(), LoadGate(s.registry, "token", "/"))
	s.router.GET("/", whoami)
	s.router.GET("/whoami", whoami)
	s.router.POST("/action", RequireCSRF(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	s.router.GET("/private", RequireAuthenticated(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

func (s *MiddlewareTestSuite) serve(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *MiddlewareTestSuite) TestBrowserIDIsStable() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/whoami", nil), nil)
	s.Equal(http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	s.Require().NotEmpty(cookies)
	first := w.Body.String()
	s.Contains(first, `"state":"no_session"`)

	w = s.serve(httptest.NewRequest(http.MethodGet, "/whoami", nil), cookies)
	s.Equal(first, w.Body.String())
	s.Equal(1, s.registry.Len())

	w = s.serve(httptest.NewRequest(http.MethodGet, "/whoami", nil), nil)
	s.NotEqual(first, w.Body.String())
	s.Equal(2, s.registry.Len())
}

func (s *MiddlewareTestSuite) TestLoginTokenSkipsHydration() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/?token=T1", nil), nil)
	s.Contains(w.Body.String(), `"state":"loading"`)
}

func (s *MiddlewareTestSuite) TestLoginParamElsewhereHydrates() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/whoami?token=T1", nil), nil)
	s.Contains(w.Body.String(), `"state":"no_session"`)

	w = s.serve(httptest.NewRequest(http.MethodPost, "/action?token=T1", nil), nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(2, s.registry.Len())
}

func (s *MiddlewareTestSuite) TestCSRF() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/whoami", nil), nil)
	cookies := w.Result().Cookies()
	csrf := strings.Split(strings.Split(w.Body.String(), `"csrf":"`)[1], `"`)[0]

	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	s.Equal(http.StatusForbidden, s.serve(req, cookies).Code)

	req = httptest.NewRequest(http.MethodPost, "/action", strings.NewReader(url.Values{CSRFFormField: {"wrong"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.Equal(http.StatusForbidden, s.serve(req, cookies).Code)

	req = httptest.NewRequest(http.MethodPost, "/action", strings.NewReader(url.Values{CSRFFormField: {csrf}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.Equal(http.StatusNoContent, s.serve(req, cookies).Code)

	req = httptest.NewRequest(http.MethodPost, "/action", nil)
	req.Header.Set(CSRFHeader, csrf)
	s.Equal(http.StatusNoContent, s.serve(req, cookies).Code)

	// a token of another browser is useless
	req = httptest.NewRequest(http.MethodPost, "/action", nil)
	req.Header.Set(CSRFHeader, csrf)
	s.Equal(http.StatusForbidden, s.serve(req, nil).Code)
}

func (s *MiddlewareTestSuite) TestRequireAuthenticated() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/private", nil), nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "not authenticated")
}

func TestMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareTestSuite))
}
