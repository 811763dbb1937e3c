package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// CallbackPredicate is one authenticity check on an inbound webhook request.
// All registered predicates must pass for the request to reach the handler.
type CallbackPredicate interface {
	Name() string
	Allow(c *gin.Context) bool
}

// CallbackAuth rejects webhook requests that fail any predicate. Rejected
// requests still get a 200 with the generic acknowledgement body so a probe
// learns nothing; the rejection lives in the logs only.
type CallbackAuth struct {
	predicates []CallbackPredicate
	logger     logger.Interface
}

func NewCallbackAuth(log logger.Interface, predicates ...CallbackPredicate) *CallbackAuth {
	return &CallbackAuth{predicates: predicates, logger: log}
}

func (m *CallbackAuth) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range m.predicates {
			if !p.Allow(c) {
				m.logger.Warnw("unauthorized callback rejected",
					"predicate", p.Name(),
					"client_ip", c.ClientIP(),
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
				return
			}
		}
		c.Next()
	}
}

// SourceIPPredicate allows only requests whose client IP falls inside the
// gateway's published egress ranges.
type SourceIPPredicate struct {
	networks []*net.IPNet
	logger   logger.Interface
}

func NewSourceIPPredicate(cidrs []string, log logger.Interface) *SourceIPPredicate {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Errorw("invalid callback CIDR ignored", "cidr", cidr, "error", err)
			continue
		}
		networks = append(networks, network)
	}
	return &SourceIPPredicate{networks: networks, logger: log}
}

func (p *SourceIPPredicate) Name() string { return "source_ip" }

func (p *SourceIPPredicate) Allow(c *gin.Context) bool {
	ip := net.ParseIP(c.ClientIP())
	if ip == nil {
		return false
	}
	for _, network := range p.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// PathSecretPredicate allows only requests addressed to the secret callback
// path registered with the gateway.
type PathSecretPredicate struct {
	secret string
}

func NewPathSecretPredicate(secret string) *PathSecretPredicate {
	return &PathSecretPredicate{secret: secret}
}

func (p *PathSecretPredicate) Name() string { return "path_secret" }

func (p *PathSecretPredicate) Allow(c *gin.Context) bool {
	return p.secret != "" && c.Param("pathSecret") == p.secret
}
