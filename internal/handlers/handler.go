package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/services"
)

// Handler carries everything the endpoint methods need: the database, the
// process-wide config, and the side-effect services.
type Handler struct {
	DB       *mongo.Database
	Cfg      *config.Config
	Mailer   *services.Mailer
	Verifier *services.LicenseVerifier
	Tokens   services.TokenStore
}

func NewHandler(db *mongo.Database, cfg *config.Config, mailer *services.Mailer, verifier *services.LicenseVerifier, tokens services.TokenStore) *Handler {
	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Mailer:   mailer,
		Verifier: verifier,
		Tokens:   tokens,
	}
}

// principal rebuilds the caller from the context; on failure it writes the
// 401 itself and reports false.
func (h *Handler) principal(c *gin.Context) (authz.Principal, bool) {
	p, err := authz.FromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return authz.Principal{}, false
	}
	return p, true
}

// scopeFilter resolves the list/read restriction for a resource, translating
// authz errors into the right status code.
func (h *Handler) scopeFilter(c *gin.Context, res authz.Resource) (authz.Principal, bson.M, bool) {
	p, ok := h.principal(c)
	if !ok {
		return authz.Principal{}, nil, false
	}
	filter, err := authz.FilterFor(p, res)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return authz.Principal{}, nil, false
	}
	return p, filter, true
}
