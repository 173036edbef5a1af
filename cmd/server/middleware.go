package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"presencehub/internal/auth"
	cidpkg "presencehub/internal/cid"
)

const claimsContextKey = "presencehub/claims"

// corsMiddleware echoes only configured origins; preflight requests
// short-circuit with 204.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := make(map[string]bool, len(s.cfg.Server.CORS.AllowOrigins))
	for _, o := range s.cfg.Server.CORS.AllowOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+cidpkg.HeaderName)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// cidMiddleware attaches a correlation id to the request context and
// the response. An incoming CID header is preserved.
func (s *Server) cidMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(cidpkg.HeaderName)
		if cid == "" {
			cid = ksuid.New().String()
		}
		c.Request = c.Request.WithContext(cidpkg.WithCID(c.Request.Context(), cid))
		c.Header(cidpkg.HeaderName, cid)
		c.Next()
	}
}

// otelMiddleware records a server span per request with basic HTTP
// attributes plus the correlation id.
func (s *Server) otelMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("presencehub/server")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.target", c.Request.URL.Path),
			),
		)
		defer span.End()

		if cid := cidpkg.CIDFromContext(ctx); cid != "" {
			span.SetAttributes(attribute.String(cidpkg.AttributeName, cid))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// authMiddleware rejects requests without a verifiable bearer token and
// stores the verified claims on the gin context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := s.verifier.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// claimsFrom returns the verified claims stored by authMiddleware.
func claimsFrom(c *gin.Context) *auth.Claims {
	v, _ := c.Get(claimsContextKey)
	claims, _ := v.(*auth.Claims)
	return claims
}
