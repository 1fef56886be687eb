package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"collabsphere.app/server/internal/http/middleware"
)

var _ = Describe("RequireIdentity", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.Use(middleware.RequireIdentity())
		router.GET("/whoami", func(c *gin.Context) {
			c.String(http.StatusOK, middleware.Principal(c))
		})
	})

	It("resolves the principal from the header", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Principal", "ana")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("ana"))
	})

	It("falls back to the query parameter", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami?principal=bo", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Body.String()).To(Equal("bo"))
	})

	It("prefers the header over the query parameter", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami?principal=bo", nil)
		req.Header.Set("X-Principal", "ana")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Body.String()).To(Equal("ana"))
	})

	It("rejects requests without an identity", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects names over the length limit", func() {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("X-Principal", strings.Repeat("a", 65))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
